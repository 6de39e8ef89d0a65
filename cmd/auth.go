package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
	"github.com/urfave/cli/v3"
)

// authStatus is the machine-readable output of `auth status`.
type authStatus struct {
	Grant         string     `json:"grant"`
	Authenticated bool       `json:"authenticated"`
	TokenFile     string     `json:"token_file,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	DisplayName   string     `json:"display_name,omitempty"`
	Product       string     `json:"product,omitempty"`
	Scope         string     `json:"scope,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// AuthLogin runs the browser authorization, replacing any current session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.openDatabase(false)
	if err := r.initAuth(); err != nil {
		return err
	}

	r.logger.Info("starting interactive authorization", "grant", r.config.Spotify.Grant)
	cred, err := r.manager.Login(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("Access token expires at %s\n", cred.ExpiresAt().Local().Format(time.RFC1123))
	if cred.RefreshToken != "" {
		r.writePlain("Refresh token saved to %s\n", r.tokens.Path())
	}

	if user, err := r.spotify.UserProfile(ctx); err != nil {
		r.logger.Warn("could not load user profile", "error", err)
	} else {
		r.writePlain("Signed in as %s (%s)\n", displayName(user.DisplayName, user.ID), user.Product)
	}
	return nil
}

// AuthStatus reports whether the persisted session can be resumed, without opening a browser.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.openDatabase(false)
	if err := r.initAuth(); err != nil {
		return err
	}

	status := authStatus{Grant: r.config.Spotify.Grant, TokenFile: r.tokens.Path()}

	cred, err := r.manager.Resume(ctx)
	if err == nil {
		status.Authenticated = true
		status.Scope = cred.Scope
		expires := cred.ExpiresAt()
		status.ExpiresAt = &expires

		if user, profileErr := r.spotify.UserProfile(ctx); profileErr != nil {
			r.logger.Warn("could not load user profile", "error", profileErr)
		} else {
			status.UserID, status.DisplayName, status.Product = user.ID, user.DisplayName, user.Product
		}
	} else {
		status.Error = err.Error()
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Spotify session")
	r.writePlain("Grant:       %s\n", status.Grant)
	r.writePlain("Token file:  %s\n", status.TokenFile)
	if !status.Authenticated {
		r.writePlain("Status:      ✗ Not authenticated\n")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			r.writePlain("Reason:      %s\n", status.Error)
		}
		r.writePlain("\nRun 'spotx auth login' to authorize.\n")
		return nil
	}

	r.writePlain("Status:      ✓ Authenticated\n")
	if status.UserID != "" {
		r.writePlain("User:        %s (%s)\n", displayName(status.DisplayName, status.UserID), status.Product)
	}
	r.writePlain("Expires:     %s\n", status.ExpiresAt.Local().Format(time.RFC1123))
	if status.Scope != "" {
		r.writePlain("Scope:       %s\n", status.Scope)
	}
	return nil
}

// AuthLogout deletes the persisted refresh token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.initAuth(); err != nil {
		return err
	}

	if err := r.manager.Logout(); err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}

	r.logger.Info("logged out", "token_file", r.tokens.Path())
	return r.writePlain("✓ Logged out, removed %s\n", r.tokens.Path())
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
