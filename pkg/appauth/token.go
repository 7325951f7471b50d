package appauth

import (
	"context"
	"fmt"

	"github.com/DataDog/workflow-call/pkg/github"
)

// TokenExchanger trades an App JWT for an installation access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, appJWT string, installationID int64) (string, error)
}

// APITokenExchanger calls the installation access token endpoint of the
// GitHub API at APIURL with the App JWT as bearer.
type APITokenExchanger struct {
	APIURL string
}

func (e *APITokenExchanger) Exchange(ctx context.Context, appJWT string, installationID int64) (string, error) {
	token, err := github.NewClient(e.APIURL, appJWT).CreateInstallationToken(ctx, installationID)
	if err != nil {
		return "", fmt.Errorf("installation %d token: %w", installationID, err)
	}
	return token.Token, nil
}
