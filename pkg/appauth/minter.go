package appauth

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/config"
	"github.com/DataDog/workflow-call/pkg/github"
)

// Minter writes an installation access token for the configured owner to
// Stdout. Lookup builds the installation lookup authenticated with the
// freshly minted App JWT, which Exchanger then trades for the token.
type Minter struct {
	Config    *config.Minter
	Exchanger TokenExchanger
	Lookup    func(appJWT string) InstallationLookup
	Stdout    io.Writer
	Log       logrus.FieldLogger
	Now       func() time.Time
}

func NewMinter(cfg *config.Minter, log logrus.FieldLogger) *Minter {
	return &Minter{
		Config:    cfg,
		Exchanger: &APITokenExchanger{APIURL: cfg.APIURL},
		Lookup:    apiLookup(cfg.APIURL),
		Stdout:    os.Stdout,
		Log:       log,
		Now:       time.Now,
	}
}

func apiLookup(apiURL string) func(appJWT string) InstallationLookup {
	return func(appJWT string) InstallationLookup {
		return github.NewClient(apiURL, appJWT)
	}
}

func (m *Minter) Run(ctx context.Context) error {
	cfg := m.Config

	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	appJWT, err := MintJWT(key, cfg.AppID, now())
	if err != nil {
		return err
	}

	installationID, err := ResolveInstallation(ctx, m.Lookup(appJWT), cfg.Owner, cfg.Repo, m.Log)
	if err != nil {
		return err
	}
	m.Log.Info("✅ Got installation_id")

	token, err := m.Exchanger.Exchange(ctx, appJWT, installationID)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("installation %d: empty token", installationID)
	}
	m.Log.Info("✅ Got installation_token")

	_, err = io.WriteString(m.Stdout, token)
	return err
}
