package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// The installation lookups must be made with an App JWT as the client token.

func (c *Client) RepoInstallation(ctx context.Context, owner, repo string) (*Installation, error) {
	return c.installation(ctx, repoPath(owner, repo)+"/installation")
}

func (c *Client) OrgInstallation(ctx context.Context, org string) (*Installation, error) {
	return c.installation(ctx, "/orgs/"+url.PathEscape(org)+"/installation")
}

func (c *Client) UserInstallation(ctx context.Context, user string) (*Installation, error) {
	return c.installation(ctx, "/users/"+url.PathEscape(user)+"/installation")
}

func (c *Client) installation(ctx context.Context, path string) (*Installation, error) {
	inst := &Installation{}
	if err := c.get(ctx, path, nil, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// CreateInstallationToken exchanges the App JWT held by the client for an
// access token of installation installationID.
func (c *Client) CreateInstallationToken(ctx context.Context, installationID int64) (*InstallationToken, error) {
	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, nil)
	if err != nil {
		return nil, err
	}
	token := &InstallationToken{}
	if err := c.do(req, token); err != nil {
		return nil, err
	}
	return token, nil
}
