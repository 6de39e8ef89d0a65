// Spotify Web API client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
	"golang.org/x/time/rate"
)

// SpotifyBaseURL is the Web API root.
const SpotifyBaseURL = "https://api.spotify.com/v1"

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// pageEnvelope covers both offset pages and cursor pages.
type pageEnvelope struct {
	Items   []json.RawMessage `json:"items"`
	Total   int               `json:"total"`
	Next    *string           `json:"next"`
	Cursors *struct {
		After *string `json:"after"`
	} `json:"cursors"`
}

type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyOptions configures a [SpotifyService].
type SpotifyOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	RateLimit  float64 // requests per second across all callers; <= 0 disables throttling
}

// SpotifyService is an authenticated Spotify Web API client.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyService creates a client that authorizes every request through tokens.
func NewSpotifyService(tokens TokenSource, opts SpotifyOptions, logger *log.Logger) *SpotifyService {
	if opts.BaseURL == "" {
		opts.BaseURL = SpotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &SpotifyService{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Name returns the name of the service.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// FetchPage retrieves one page of desc addressed by req.
func (s *SpotifyService) FetchPage(ctx context.Context, desc models.PageDescriptor, req models.PageRequest) (*models.Page, error) {
	query := url.Values{}
	for k, v := range desc.Query {
		query.Set(k, v)
	}
	query.Set("limit", strconv.Itoa(req.Limit))
	switch desc.Mode {
	case models.CursorMode:
		if req.After != "" {
			query.Set("after", req.After)
		}
	default:
		query.Set("offset", strconv.Itoa(req.Offset))
	}

	var body json.RawMessage
	if err := s.doRequest(ctx, desc.Endpoint+"?"+query.Encode(), &body); err != nil {
		return nil, err
	}

	if desc.Envelope != "" {
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: decode %s envelope: %v", shared.ErrAPIRequest, desc.Envelope, err)
		}
		inner, ok := wrapped[desc.Envelope]
		if !ok {
			return nil, fmt.Errorf("%w: response has no %q envelope", shared.ErrAPIRequest, desc.Envelope)
		}
		body = inner
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode page: %v", shared.ErrAPIRequest, err)
	}

	page := &models.Page{Items: env.Items, Total: env.Total}
	if env.Next != nil {
		page.Next = *env.Next
	}
	if env.Cursors != nil && env.Cursors.After != nil {
		page.After = *env.Cursors.After
	}
	return page, nil
}

// UserProfile retrieves the current user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// doRequest performs an authenticated GET against the API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	cred, err := s.tokens.EnsureFresh(ctx)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w: %v", shared.ErrNetwork, shared.ErrTimeout, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", cred.Authorization())
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return fmt.Errorf("%w: %w: GET %s", shared.ErrNetwork, shared.ErrTimeout, req.URL.Path)
		}
		return fmt.Errorf("%w: GET %s: %v", shared.ErrNetwork, req.URL.Path, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("spotify request", "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(req, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

func statusError(req *http.Request, resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case http.StatusTooManyRequests:
		if after := resp.Header.Get("Retry-After"); after != "" {
			return fmt.Errorf("%w: retry after %ss", shared.ErrRateLimited, after)
		}
		return fmt.Errorf("%w: %s", shared.ErrRateLimited, msg)
	default:
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrAPIRequest, req.Method, req.URL.Path, resp.StatusCode, msg)
	}
}
