package auth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/server"
	"github.com/desertthunder/spotx/internal/shared"
)

// FlowOptions configures an [InteractiveFlow].
type FlowOptions struct {
	ListenAddr string
	Timeout    time.Duration
	Open       shared.URLOpener
	Notify     func(authURL string)
}

// InteractiveFlow runs one browser round trip: bind the loopback port, open the authorization
// URL, and wait for the callback page to submit the redirect parameters.
type InteractiveFlow struct {
	client    *OAuthClient
	finalizer *Finalizer
	opts      FlowOptions
	logger    *log.Logger
}

// NewInteractiveFlow creates a flow. A nil opts.Open defaults to [shared.OpenBrowser].
func NewInteractiveFlow(client *OAuthClient, finalizer *Finalizer, opts FlowOptions, logger *log.Logger) *InteractiveFlow {
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &InteractiveFlow{client: client, finalizer: finalizer, opts: opts, logger: logger}
}

// Authorize performs the interactive authorization and returns the resulting credential.
func (f *InteractiveFlow) Authorize(ctx context.Context) (models.Credential, error) {
	state, err := NewAuthState()
	if err != nil {
		return models.Credential{}, err
	}

	callback := server.NewCallbackHandler(func(params url.Values) (models.Credential, error) {
		return f.finalizer.Finalize(ctx, params, state)
	}, shared.WithLogger(f.logger, "component", "callback"))

	srv, err := server.Listen(f.opts.ListenAddr, callback, f.logger)
	if err != nil {
		return models.Credential{}, err
	}

	authURL := f.client.AuthURL(state)
	if f.opts.Notify != nil {
		f.opts.Notify(authURL)
	}

	if err := f.opts.Open(authURL); err != nil {
		f.logger.Warn("could not open browser, visit the URL manually", "error", err)
	}

	f.logger.Info("waiting for authorization", "addr", srv.Addr().String(), "timeout", f.opts.Timeout)
	cred, err := srv.Await(ctx, f.opts.Timeout)
	if err != nil {
		return models.Credential{}, fmt.Errorf("interactive authorization: %w", err)
	}
	return cred, nil
}
