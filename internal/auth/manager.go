package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// State is the lifecycle state of the managed credential.
type State int

const (
	NoToken State = iota
	Valid
	Expired
	Fatal
)

func (s State) String() string {
	switch s {
	case NoToken:
		return "no-token"
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Authorizer obtains a credential interactively.
type Authorizer interface {
	Authorize(ctx context.Context) (models.Credential, error)
}

// Refresher trades a refresh token for a new credential.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Credential, error)
}

// EventRecorder receives a record of every login and refresh attempt.
type EventRecorder interface {
	RecordAuthEvent(ctx context.Context, event models.AuthEvent) error
}

// ManagerOptions configures a [Manager].
type ManagerOptions struct {
	Grant         string
	Authorizer    Authorizer
	Refresher     Refresher
	Store         *TokenFile
	RefreshMargin time.Duration
	Events        EventRecorder
	Now           func() time.Time
}

// Manager owns the session credential.
//
// Every API request calls [Manager.EnsureFresh] first. Refreshes are serialized: the lock is held
// across the exchange, so callers that observe a stale token at the same time cause exactly one
// refresh and all receive its result. A rejected refresh is final for the process; a network
// failure leaves the credential expired so the next caller may try once more.
type Manager struct {
	opts   ManagerOptions
	logger *log.Logger

	mu       sync.Mutex
	state    State
	cred     models.Credential
	fatalErr error
}

// NewManager creates a manager in the [NoToken] state.
func NewManager(opts ManagerOptions, logger *log.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Grant == "" {
		opts.Grant = shared.GrantCode
	}
	return &Manager{opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// Acquire returns a valid credential, authenticating if needed.
//
// In code mode a persisted refresh token is tried first; if that fails the interactive flow runs.
// An interactive failure is fatal and wraps [shared.ErrAuthFailed].
func (m *Manager) Acquire(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Valid:
		return m.cred, nil
	case Fatal:
		return models.Credential{}, m.fatalErr
	}

	if m.opts.Grant == shared.GrantCode && m.opts.Store != nil {
		if cred, ok := m.silentLocked(ctx); ok {
			return cred, nil
		}
	}

	return m.interactiveLocked(ctx)
}

// Login discards any current credential and runs the interactive flow.
func (m *Manager) Login(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state, m.cred, m.fatalErr = NoToken, models.Credential{}, nil
	return m.interactiveLocked(ctx)
}

// Resume re-authenticates from the persisted refresh token without ever opening a browser.
//
// It fails with [shared.ErrNotAuthenticated] when there is nothing to resume from.
func (m *Manager) Resume(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Valid {
		return m.cred, nil
	}
	if m.opts.Grant != shared.GrantCode || m.opts.Store == nil {
		return models.Credential{}, fmt.Errorf("%w: %s grant keeps no persisted token", shared.ErrNotAuthenticated, m.opts.Grant)
	}
	if cred, ok := m.silentLocked(ctx); ok {
		return cred, nil
	}
	return models.Credential{}, fmt.Errorf("%w: no usable refresh token at %s", shared.ErrNotAuthenticated, m.opts.Store.Path())
}

// Logout forgets the in-memory credential and deletes the persisted refresh token.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state, m.cred, m.fatalErr = NoToken, models.Credential{}, nil
	if m.opts.Store == nil {
		return nil
	}
	return m.opts.Store.Delete()
}

// EnsureFresh returns a credential safe to use for the next request, refreshing it first when it
// is within the refresh margin of expiry. Implicit-grant credentials are never refreshed.
func (m *Manager) EnsureFresh(ctx context.Context) (models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case NoToken:
		return models.Credential{}, shared.ErrNotAuthenticated
	case Fatal:
		return models.Credential{}, m.fatalErr
	}

	if m.opts.Grant == shared.GrantImplicit {
		return m.cred, nil
	}

	if m.state == Valid && !m.cred.Stale(m.opts.Now(), m.opts.RefreshMargin) {
		return m.cred, nil
	}
	m.state = Expired

	if m.cred.RefreshToken == "" {
		m.fail(fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken))
		return models.Credential{}, m.fatalErr
	}

	cred, err := m.refreshLocked(ctx, m.cred.RefreshToken, "refresh")
	if err == nil {
		return cred, nil
	}

	if errors.Is(err, shared.ErrExchange) {
		m.fail(fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err))
		return models.Credential{}, m.fatalErr
	}
	return models.Credential{}, fmt.Errorf("token refresh: %w", err)
}

// silentLocked attempts one refresh with the persisted token.
func (m *Manager) silentLocked(ctx context.Context) (models.Credential, bool) {
	token, err := m.opts.Store.Load()
	if err != nil {
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			m.logger.Warn("could not read persisted refresh token", "error", err)
		}
		return models.Credential{}, false
	}

	cred, err := m.refreshLocked(ctx, token, "silent")
	if err != nil {
		m.logger.Warn("persisted refresh token rejected, falling back to browser", "error", err)
		m.state = NoToken
		return models.Credential{}, false
	}
	m.logger.Info("re-authenticated with persisted refresh token")
	return cred, true
}

func (m *Manager) interactiveLocked(ctx context.Context) (models.Credential, error) {
	if m.opts.Authorizer == nil {
		m.fail(fmt.Errorf("%w: no interactive authorizer configured", shared.ErrAuthFailed))
		return models.Credential{}, m.fatalErr
	}

	cred, err := m.opts.Authorizer.Authorize(ctx)
	m.record(ctx, "login", err)
	if err != nil {
		m.fail(fmt.Errorf("%w: %w", shared.ErrAuthFailed, err))
		return models.Credential{}, m.fatalErr
	}
	if !cred.Valid() {
		m.fail(fmt.Errorf("%w: authorization returned an incomplete credential", shared.ErrAuthFailed))
		return models.Credential{}, m.fatalErr
	}

	m.state, m.cred = Valid, cred
	return cred, nil
}

// refreshLocked performs a single refresh exchange and installs the result.
func (m *Manager) refreshLocked(ctx context.Context, refreshToken, kind string) (models.Credential, error) {
	if m.opts.Refresher == nil {
		return models.Credential{}, fmt.Errorf("%w: no refresher configured", shared.ErrExchange)
	}

	cred, err := m.opts.Refresher.Refresh(ctx, refreshToken)
	m.record(ctx, kind, err)
	if err != nil {
		return models.Credential{}, err
	}

	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	if cred.RefreshToken != refreshToken && m.opts.Store != nil {
		if err := m.opts.Store.Save(cred.RefreshToken); err != nil {
			m.logger.Warn("could not persist rotated refresh token", "error", err)
		}
	}

	m.state, m.cred = Valid, cred
	m.logger.Debug("access token refreshed", "expires_at", cred.ExpiresAt().Format(time.RFC3339))
	return cred, nil
}

func (m *Manager) fail(err error) {
	m.state = Fatal
	m.cred = models.Credential{}
	m.fatalErr = err
}

func (m *Manager) record(ctx context.Context, kind string, err error) {
	if m.opts.Events == nil {
		return
	}
	event := models.AuthEvent{Kind: kind, Grant: m.opts.Grant, Outcome: "ok", CreatedAt: m.opts.Now()}
	if err != nil {
		event.Outcome, event.Detail = "error", err.Error()
	}
	if recErr := m.opts.Events.RecordAuthEvent(ctx, event); recErr != nil {
		m.logger.Debug("could not record auth event", "error", recErr)
	}
}
