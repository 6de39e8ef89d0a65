// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/spotx/internal/models"
)

// StaticTokens is a test double for [services.TokenSource] that always returns the same credential.
type StaticTokens struct {
	Cred  models.Credential
	Err   error
	calls atomic.Int32
}

func NewStaticTokens(cred models.Credential) *StaticTokens {
	return &StaticTokens{Cred: cred}
}

func (s *StaticTokens) EnsureFresh(context.Context) (models.Credential, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return models.Credential{}, s.Err
	}
	return s.Cred, nil
}

// Calls returns how many times EnsureFresh ran.
func (s *StaticTokens) Calls() int32 { return s.calls.Load() }

// PageFunc answers one page request.
type PageFunc func(desc models.PageDescriptor, req models.PageRequest) (*models.Page, error)

// MockFetcher is a test double for the page fetcher that records every request.
type MockFetcher struct {
	Respond PageFunc

	mu       sync.Mutex
	requests []FetchCall
}

// FetchCall is one recorded page request.
type FetchCall struct {
	Endpoint string
	Request  models.PageRequest
}

func (m *MockFetcher) FetchPage(_ context.Context, desc models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
	m.mu.Lock()
	m.requests = append(m.requests, FetchCall{Endpoint: desc.Endpoint, Request: req})
	m.mu.Unlock()
	return m.Respond(desc, req)
}

// Calls returns a copy of the recorded requests.
func (m *MockFetcher) Calls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FetchCall(nil), m.requests...)
}

// CallsTo returns the recorded requests for endpoint.
func (m *MockFetcher) CallsTo(endpoint string) []FetchCall {
	var out []FetchCall
	for _, c := range m.Calls() {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

// Items builds n JSON objects {"id": "<prefix><i>"} starting at start.
func Items(prefix string, start, n int) []json.RawMessage {
	items := make([]json.RawMessage, 0, n)
	for i := start; i < start+n; i++ {
		b, _ := json.Marshal(map[string]any{"id": prefix + strconv.Itoa(i), "name": prefix + " " + strconv.Itoa(i)})
		items = append(items, b)
	}
	return items
}

// WriteJSON writes body as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
