package appauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/github"
)

var ErrNoInstallation = errors.New("no installation found")

type InstallationLookup interface {
	RepoInstallation(ctx context.Context, owner, repo string) (*github.Installation, error)
	OrgInstallation(ctx context.Context, org string) (*github.Installation, error)
	UserInstallation(ctx context.Context, user string) (*github.Installation, error)
}

// ResolveInstallation finds the App installation covering owner, trying the
// repository (when repo is set), then the organization, then the user
// installation. A failed lookup is logged and the next scope is tried.
func ResolveInstallation(ctx context.Context, lookup InstallationLookup, owner, repo string, log logrus.FieldLogger) (int64, error) {
	type scope struct {
		name string
		find func() (*github.Installation, error)
	}
	var scopes []scope
	if repo != "" {
		scopes = append(scopes, scope{"repository " + owner + "/" + repo, func() (*github.Installation, error) {
			return lookup.RepoInstallation(ctx, owner, repo)
		}})
	}
	scopes = append(scopes,
		scope{"organization " + owner, func() (*github.Installation, error) {
			return lookup.OrgInstallation(ctx, owner)
		}},
		scope{"user " + owner, func() (*github.Installation, error) {
			return lookup.UserInstallation(ctx, owner)
		}},
	)

	for _, s := range scopes {
		inst, err := s.find()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Debugf("no installation for %s: %s", s.name, err)
			continue
		}
		if inst != nil && inst.ID != 0 {
			log.Debugf("found installation %d for %s", inst.ID, s.name)
			return inst.ID, nil
		}
	}
	return 0, fmt.Errorf("%w for %s", ErrNoInstallation, owner)
}
