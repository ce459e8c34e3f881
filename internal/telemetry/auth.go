package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthStatus is what `testgenie auth --test` reports about the configured token.
type AuthStatus struct {
	Login      string
	Email      string
	RepoAccess bool
}

// CheckAuth verifies the token against the GitHub API: it must identify a
// user and be able to read the analytics repository.
func CheckAuth(ctx context.Context, cfg Config, hc *http.Client) (AuthStatus, error) {
	if cfg.Token == "" {
		return AuthStatus{}, errNoToken
	}

	p := newPoster(cfg, hc)
	payload, terr := p.get(ctx, "auth", cfg.APIURL+"/user")
	if terr != nil {
		return AuthStatus{}, fmt.Errorf("get user: %w", terr)
	}

	var user struct {
		Login string `json:"login"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &user); err != nil {
		return AuthStatus{}, fmt.Errorf("decode user: %w", err)
	}

	status := AuthStatus{Login: user.Login, Email: user.Email}
	if _, terr := p.get(ctx, "auth", fmt.Sprintf("%s/repos/%s", cfg.APIURL, cfg.Repo)); terr != nil {
		return status, fmt.Errorf("read repository %s: %w", cfg.Repo, terr)
	}
	status.RepoAccess = true
	return status, nil
}

// MaskToken keeps the first characters of a token for display.
func MaskToken(token string) string {
	if len(token) <= 10 {
		return "***"
	}
	return token[:10] + "..."
}
