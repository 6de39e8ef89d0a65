package auth

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// Exchanger trades an authorization code for a credential.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (models.Credential, error)
}

// Finalizer turns the parameters of the finalize request into a credential.
type Finalizer struct {
	grant     string
	exchanger Exchanger
	store     *TokenFile
	now       func() time.Time
	logger    *log.Logger
}

// NewFinalizer creates a finalizer for grant. store may be nil, in which case refresh tokens are
// kept in memory only.
func NewFinalizer(grant string, exchanger Exchanger, store *TokenFile, logger *log.Logger) *Finalizer {
	return &Finalizer{grant: grant, exchanger: exchanger, store: store, now: time.Now, logger: logger}
}

// Finalize validates params against the expected state and produces a credential.
//
// Unknown parameters are ignored. A missing or different state, a provider error, or missing
// grant parameters are protocol errors and leave no credential behind.
func (f *Finalizer) Finalize(ctx context.Context, params url.Values, expectedState string) (models.Credential, error) {
	if !params.Has("state") {
		return models.Credential{}, fmt.Errorf("%w: missing state", shared.ErrProtocol)
	}
	if params.Get("state") != expectedState {
		return models.Credential{}, fmt.Errorf("%w: state mismatch", shared.ErrProtocol)
	}

	if providerErr := params.Get("error"); providerErr != "" {
		if desc := params.Get("error_description"); desc != "" {
			providerErr += ": " + desc
		}
		return models.Credential{}, fmt.Errorf("%w: authorization denied: %s", shared.ErrProtocol, providerErr)
	}

	switch f.grant {
	case shared.GrantImplicit:
		return f.implicit(params)
	default:
		return f.code(ctx, params)
	}
}

func (f *Finalizer) implicit(params url.Values) (models.Credential, error) {
	for _, key := range []string{"access_token", "token_type", "expires_in"} {
		if params.Get(key) == "" {
			return models.Credential{}, fmt.Errorf("%w: missing %s", shared.ErrProtocol, key)
		}
	}

	expiresIn, err := strconv.ParseInt(params.Get("expires_in"), 10, 64)
	if err != nil || expiresIn < 0 {
		return models.Credential{}, fmt.Errorf("%w: expires_in %q is not a number of seconds", shared.ErrProtocol, params.Get("expires_in"))
	}

	return models.Credential{
		AccessToken: params.Get("access_token"),
		TokenType:   params.Get("token_type"),
		ExpiresIn:   expiresIn,
		IssuedAt:    f.now(),
	}, nil
}

func (f *Finalizer) code(ctx context.Context, params url.Values) (models.Credential, error) {
	code := params.Get("code")
	if code == "" {
		return models.Credential{}, fmt.Errorf("%w: missing code", shared.ErrProtocol)
	}

	cred, err := f.exchanger.Exchange(ctx, code)
	if err != nil {
		return models.Credential{}, err
	}

	if cred.RefreshToken == "" {
		f.logger.Warn("code exchange returned no refresh token; next run will need a browser")
		return cred, nil
	}

	if f.store != nil {
		if err := f.store.Save(cred.RefreshToken); err != nil {
			f.logger.Warn("could not persist refresh token", "path", f.store.Path(), "error", err)
		} else {
			f.logger.Debug("refresh token saved", "path", f.store.Path())
		}
	}
	return cred, nil
}
