package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

func testLogger() *log.Logger {
	return shared.NewLogger(io.Discard)
}

func TestBasicRouter(t *testing.T) {
	t.Run("Handle rejects other methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != "GET" {
			t.Errorf("expected Allow header GET, got %q", rec.Header().Get("Allow"))
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("Middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if got := strings.Join(order, ","); got != "first,second,handler" {
			t.Errorf("unexpected order %s", got)
		}
	})

	t.Run("Handler registers every route", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handler(NewCallbackHandler(nil, testLogger()))

		if got := router.Patterns(); len(got) != 2 || got[1] != FinalizePath {
			t.Errorf("unexpected patterns %v", got)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recoverer(testLogger()))
		router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("RequestLogger omits query", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)
		logger.SetLevel(log.DebugLevel)

		router := NewBasicRouter()
		router.Use(RequestLogger(logger))
		router.Handle(http.MethodGet, "/callback", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))

		if strings.Contains(buf.String(), "secret") {
			t.Errorf("query leaked into log: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "/callback") {
			t.Errorf("expected path in log: %s", buf.String())
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	okFinalize := func(params url.Values) (models.Credential, error) {
		return models.Credential{AccessToken: params.Get("access_token"), TokenType: "Bearer"}, nil
	}

	t.Run("phases", func(t *testing.T) {
		h := NewCallbackHandler(okFinalize, testLogger())
		if h.Phase() != AwaitingRedirect {
			t.Fatalf("expected awaiting-redirect, got %s", h.Phase())
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), FinalizePath) {
			t.Errorf("expected callback page, got %d", rec.Code)
		}
		if h.Phase() != AwaitingFinalize {
			t.Errorf("expected awaiting-finalize, got %s", h.Phase())
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FinalizePath+"?access_token=abc&state=s", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if h.Phase() != Done {
			t.Errorf("expected done, got %s", h.Phase())
		}

		result := <-h.Result()
		if result.Err != nil || result.Credential.AccessToken != "abc" {
			t.Errorf("unexpected result %+v", result)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FinalizePath+"?access_token=again", nil))
		if rec.Code != http.StatusGone {
			t.Errorf("expected 410 after done, got %d", rec.Code)
		}
	})

	t.Run("failed finalize still completes", func(t *testing.T) {
		h := NewCallbackHandler(func(url.Values) (models.Credential, error) {
			return models.Credential{}, fmt.Errorf("%w: state mismatch", shared.ErrProtocol)
		}, testLogger())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FinalizePath+"?state=wrong", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if h.Phase() != Done {
			t.Errorf("expected done, got %s", h.Phase())
		}
		if result := <-h.Result(); !errors.Is(result.Err, shared.ErrProtocol) {
			t.Errorf("expected protocol error, got %v", result.Err)
		}
	})

	t.Run("exchange failure maps to 502", func(t *testing.T) {
		h := NewCallbackHandler(func(url.Values) (models.Credential, error) {
			return models.Credential{}, shared.ErrExchange
		}, testLogger())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, FinalizePath+"?code=x", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

func TestLoopbackServer(t *testing.T) {
	t.Run("redirect then finalize", func(t *testing.T) {
		var calls atomic.Int32
		h := NewCallbackHandler(func(params url.Values) (models.Credential, error) {
			calls.Add(1)
			return models.Credential{AccessToken: params.Get("access_token"), TokenType: params.Get("token_type")}, nil
		}, testLogger())

		srv, err := Listen("127.0.0.1:0", h, testLogger())
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}
		base := "http://" + srv.Addr().String()

		type outcome struct {
			cred models.Credential
			err  error
		}
		done := make(chan outcome, 1)
		go func() {
			cred, err := srv.Await(context.Background(), 5*time.Second)
			done <- outcome{cred, err}
		}()

		resp, err := http.Get(base + "/callback")
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		resp.Body.Close()

		resp, err = http.Get(base + FinalizePath + "?access_token=tok&token_type=Bearer&expires_in=3600&state=s")
		if err != nil {
			t.Fatalf("finalize request failed: %v", err)
		}
		resp.Body.Close()

		got := <-done
		if got.err != nil {
			t.Fatalf("Await returned error: %v", got.err)
		}
		if got.cred.Authorization() != "Bearer tok" {
			t.Errorf("unexpected credential %+v", got.cred)
		}
		if calls.Load() != 1 {
			t.Errorf("expected one finalize, got %d", calls.Load())
		}
	})

	t.Run("releases port after failure", func(t *testing.T) {
		h := NewCallbackHandler(func(url.Values) (models.Credential, error) {
			return models.Credential{}, fmt.Errorf("%w: state mismatch", shared.ErrProtocol)
		}, testLogger())

		srv, err := Listen("127.0.0.1:0", h, testLogger())
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}
		addr := srv.Addr().String()

		done := make(chan error, 1)
		go func() {
			_, err := srv.Await(context.Background(), 5*time.Second)
			done <- err
		}()

		resp, err := http.Get("http://" + addr + FinalizePath + "?state=other")
		if err != nil {
			t.Fatalf("finalize request failed: %v", err)
		}
		resp.Body.Close()

		if err := <-done; !errors.Is(err, shared.ErrProtocol) {
			t.Fatalf("expected protocol error, got %v", err)
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			t.Fatalf("port should be released: %v", err)
		}
		ln.Close()
	})

	t.Run("timeout", func(t *testing.T) {
		h := NewCallbackHandler(nil, testLogger())
		srv, err := Listen("127.0.0.1:0", h, testLogger())
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}

		_, err = srv.Await(context.Background(), 50*time.Millisecond)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected timeout, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := NewCallbackHandler(nil, testLogger())
		srv, err := Listen("127.0.0.1:0", h, testLogger())
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := srv.Await(ctx, time.Minute); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected timeout on cancel, got %v", err)
		}
	})

	t.Run("busy port", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}
		defer ln.Close()

		if _, err := Listen(ln.Addr().String(), NewCallbackHandler(nil, testLogger()), testLogger()); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected auth failure on busy port, got %v", err)
		}
	})
}
