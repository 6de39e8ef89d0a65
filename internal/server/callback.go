package server

import (
	_ "embed"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

//go:embed static/callback.html
var callbackPage []byte

// FinalizePath is the path the callback page submits the redirect parameters to.
const FinalizePath = "/finalizeAuthentication"

// Phase is the position of a [CallbackHandler] in the authorization round trip.
type Phase int

const (
	AwaitingRedirect Phase = iota // no browser request seen yet
	AwaitingFinalize              // callback page served, waiting for its finalize request
	Done                          // finalize handled, result delivered
)

func (p Phase) String() string {
	switch p {
	case AwaitingRedirect:
		return "awaiting-redirect"
	case AwaitingFinalize:
		return "awaiting-finalize"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// FinalizeFunc turns the redirect parameters into a credential.
type FinalizeFunc func(params url.Values) (models.Credential, error)

// CallbackResult is the single outcome delivered by a [CallbackHandler].
type CallbackResult struct {
	Credential models.Credential
	Err        error
}

// CallbackHandler serves the redirect page and the finalize request of one authorization attempt.
//
// Requests are handled one at a time. The finalize request moves the handler to [Done] whether
// finalization succeeds or fails, and its result is delivered exactly once on [CallbackHandler.Result].
type CallbackHandler struct {
	finalize FinalizeFunc
	logger   *log.Logger

	mu     sync.Mutex
	phase  Phase
	result chan CallbackResult
	once   sync.Once
}

// NewCallbackHandler creates a handler in the [AwaitingRedirect] phase.
func NewCallbackHandler(finalize FinalizeFunc, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{
		finalize: finalize,
		logger:   logger,
		result:   make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
//
// "/" catches the provider redirect and anything else the browser asks for.
func (h *CallbackHandler) Routes() []string {
	return []string{"/", FinalizePath}
}

// Phase returns the current phase.
func (h *CallbackHandler) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// ServeHTTP dispatches on phase and path.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase == Done {
		http.Error(w, "Authorization already completed", http.StatusGone)
		return
	}

	if r.URL.Path != FinalizePath {
		h.servePage(w, r)
		return
	}

	cred, err := h.finalize(r.URL.Query())
	h.phase = Done
	h.send(CallbackResult{Credential: cred, Err: err})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		h.logger.Warn("authorization finalize failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, shared.ErrProtocol) {
			status = http.StatusBadRequest
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(err.Error()))
		return
	}

	_, _ = w.Write([]byte("You can close this window and return to the terminal."))
}

func (h *CallbackHandler) servePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.phase == AwaitingRedirect {
		h.logger.Debug("redirect received", "path", r.URL.Path)
		h.phase = AwaitingFinalize
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(callbackPage)
}

// send delivers the result once and closes the channel.
func (h *CallbackHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result returns the channel carrying the single finalize outcome.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.result
}
