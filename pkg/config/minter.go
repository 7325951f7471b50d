package config

import (
	"fmt"
	"os"
	"strings"
)

// Minter is the configuration of the github-auth binary.
type Minter struct {
	Owner      string
	Repo       string // optional, enables the repository installation lookup
	AppID      string
	PrivateKey []byte
	APIURL     string
}

// LoadMinter populates a Minter from the environment. The private key is
// taken from GIT_HUB_APP_PRIVATE_KEY, or read from the file named by
// GIT_HUB_APP_PRIVATE_KEY_PATH when the inline key is unset.
func LoadMinter(getenv Getenv) (*Minter, error) {
	r := &reader{getenv: getenv}
	cfg := &Minter{
		Owner:  r.required("OWNER_NAME"),
		Repo:   r.optional("REPO_NAME", ""),
		AppID:  r.required("GIT_HUB_APP_ID"),
		APIURL: r.optional("GITHUB_API_URL", DefaultAPIURL),
	}

	key := getenv("GIT_HUB_APP_PRIVATE_KEY")
	keyPath := getenv("GIT_HUB_APP_PRIVATE_KEY_PATH")
	switch {
	case key != "":
		cfg.PrivateKey = []byte(normalizePEM(key))
	case keyPath != "":
		data, err := os.ReadFile(keyPath)
		if err != nil {
			r.invalid = append(r.invalid, &InvalidError{Name: "GIT_HUB_APP_PRIVATE_KEY_PATH", Value: keyPath, Err: fmt.Errorf("read private key: %w", err)})
		}
		cfg.PrivateKey = data
	default:
		r.missing = append(r.missing, "GIT_HUB_APP_PRIVATE_KEY")
	}

	if err := r.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalizePEM expands literal "\n" sequences, which is how multi-line
// keys usually survive being stored in a single-line secret.
func normalizePEM(key string) string {
	if strings.Contains(key, "\n") {
		return key
	}
	return strings.ReplaceAll(key, `\n`, "\n")
}
