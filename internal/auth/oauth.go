package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"golang.org/x/oauth2"
)

// SpotifyEndpoint is the Spotify accounts service.
//
// Credentials go in the Basic auth header only. Auto-detection would retry a rejected exchange
// with the other style and turn one refresh into two requests.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.spotify.com/authorize",
	TokenURL:  "https://accounts.spotify.com/api/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// ClientOptions configures an [OAuthClient].
type ClientOptions struct {
	ClientID     string
	ClientSecret string
	Grant        string
	Scopes       []string
	RedirectURL  string
	ShowDialog   bool
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
	Now          func() time.Time
}

// ClientOptionsFromConfig maps application config onto [ClientOptions].
func ClientOptionsFromConfig(cfg *shared.Config) ClientOptions {
	return ClientOptions{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Grant:        cfg.Spotify.Grant,
		Scopes:       cfg.Spotify.Scopes,
		RedirectURL:  cfg.RedirectURL(),
		ShowDialog:   cfg.Auth.ShowDialog,
		Endpoint:     SpotifyEndpoint,
		HTTPClient:   &http.Client{Timeout: cfg.Spotify.HTTPTimeout.Duration},
	}
}

// OAuthClient builds authorization URLs and performs token-endpoint exchanges.
type OAuthClient struct {
	config     *oauth2.Config
	grant      string
	showDialog bool
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthClient creates a client from opts.
func NewOAuthClient(opts ClientOptions) *OAuthClient {
	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = SpotifyEndpoint
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	grant := opts.Grant
	if grant == "" {
		grant = shared.GrantCode
	}

	return &OAuthClient{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  opts.RedirectURL,
			Scopes:       opts.Scopes,
		},
		grant:      grant,
		showDialog: opts.ShowDialog,
		httpClient: httpClient,
		now:        now,
	}
}

// Grant returns the configured grant variant.
func (c *OAuthClient) Grant() string { return c.grant }

// AuthURL returns the provider authorization URL for state.
//
// The implicit grant asks for response_type=token so the token comes back in the URL fragment.
func (c *OAuthClient) AuthURL(state string) string {
	var opts []oauth2.AuthCodeOption
	if c.grant == shared.GrantImplicit {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", "token"))
	}
	if c.showDialog {
		opts = append(opts, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return c.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a credential in one synchronous request.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (models.Credential, error) {
	tok, err := c.config.Exchange(c.withClient(ctx), code)
	if err != nil {
		return models.Credential{}, classifyTokenError("code exchange", err)
	}
	return c.credentialFromToken(tok), nil
}

// Refresh trades a refresh token for a new credential in one request.
//
// When the response omits a refresh token the returned credential keeps refreshToken.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	src := c.config.TokenSource(c.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return models.Credential{}, classifyTokenError("refresh", err)
	}

	cred := c.credentialFromToken(tok)
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

func (c *OAuthClient) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) credentialFromToken(tok *oauth2.Token) models.Credential {
	issued := c.now()
	cred := models.Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		IssuedAt:     issued,
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}
	if cred.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		cred.ExpiresIn = int64(tok.Expiry.Sub(issued).Round(time.Second) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	return cred
}

// classifyTokenError sorts token-endpoint failures into rejected exchanges, which are final, and
// network failures, which the caller may try again later.
func classifyTokenError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		reason := retrieveErr.ErrorCode
		if retrieveErr.ErrorDescription != "" {
			reason += ": " + retrieveErr.ErrorDescription
		}
		if reason == "" {
			reason = string(retrieveErr.Body)
		}
		return fmt.Errorf("%w: %s: status %d: %s", shared.ErrExchange, op, status, reason)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%w: %w: %s: %v", shared.ErrNetwork, shared.ErrTimeout, op, urlErr.Err)
		}
		return fmt.Errorf("%w: %s: %v", shared.ErrNetwork, op, urlErr.Err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w: %s: %v", shared.ErrNetwork, shared.ErrTimeout, op, err)
	}

	// Malformed JSON or a response without access_token.
	return fmt.Errorf("%w: %s: %v", shared.ErrExchange, op, err)
}
