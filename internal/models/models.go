package models

import (
	"encoding/json"
	"time"
)

// Credential is the token state of the single authenticated session.
//
// ExpiresIn is the lifetime in seconds counted from IssuedAt, which is stamped locally when the
// credential is obtained. RefreshToken is empty for implicit-grant credentials.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	Scope        string    `json:"scope,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Valid reports whether the credential can be used to authorize a request.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.TokenType != ""
}

// ExpiresAt returns the instant the access token stops being accepted.
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(time.Duration(c.ExpiresIn) * time.Second)
}

// Stale reports whether the token is inside the refresh margin at now.
func (c Credential) Stale(now time.Time, margin time.Duration) bool {
	return !now.Before(c.ExpiresAt().Add(-margin))
}

// Authorization renders the Authorization header value, e.g. "Bearer BQD...".
func (c Credential) Authorization() string {
	return c.TokenType + " " + c.AccessToken
}

// PaginationMode selects how the next page is addressed.
type PaginationMode int

const (
	OffsetMode PaginationMode = iota
	CursorMode
)

func (m PaginationMode) String() string {
	switch m {
	case OffsetMode:
		return "offset"
	case CursorMode:
		return "cursor"
	default:
		return "unknown"
	}
}

// PageDescriptor describes one paged collection endpoint. Descriptors are immutable per resource type.
type PageDescriptor struct {
	Resource string            // Resource is the export name, e.g. "tracks"
	Endpoint string            // Endpoint is the path under the API base, e.g. "/me/tracks"
	PageSize int               // PageSize is the limit sent with each request (max 50)
	Mode     PaginationMode    // Mode selects offset or cursor addressing
	Query    map[string]string // Query holds fixed parameters sent with every request
	Envelope string            // Envelope names the wrapper key around the page, if any
	Child    *ChildDescriptor  // Child describes a nested per-item fetch
}

// ChildDescriptor builds the descriptor for a nested collection owned by a parent item.
type ChildDescriptor struct {
	Field    string                         // Field is the key the nested collection is attached under
	Describe func(id string) PageDescriptor // Describe returns the descriptor for the item with id
}

// PageRequest addresses a single page.
type PageRequest struct {
	Limit  int
	Offset int
	After  string
}

// Page is one decoded page envelope.
type Page struct {
	Items []json.RawMessage `json:"items"`
	Total int               `json:"total"`
	Next  string            `json:"next,omitempty"`
	After string            `json:"-"`
}

// Collection holds every item of a resource in server order.
type Collection struct {
	Resource string            `json:"-"`
	Total    int               `json:"total"`
	Items    []json.RawMessage `json:"items"`
}

// Len returns the number of fetched items.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// ExportStatus is the lifecycle state of an [ExportRun].
type ExportStatus string

const (
	ExportRunning ExportStatus = "running"
	ExportSuccess ExportStatus = "success"
	ExportPartial ExportStatus = "partial"
	ExportFailed  ExportStatus = "failed"
)

// ExportRun records one invocation of the export command.
type ExportRun struct {
	ID          string           `json:"id"`
	Grant       string           `json:"grant"`
	OutputDir   string           `json:"output_dir"`
	Format      string           `json:"format"`
	Status      ExportStatus     `json:"status"`
	ArchivePath string           `json:"archive_path,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Results     []ResourceResult `json:"resources"`
}

// Failed returns the results that ended in an error.
func (r *ExportRun) Failed() []ResourceResult {
	var failed []ResourceResult
	for _, res := range r.Results {
		if res.Err != "" {
			failed = append(failed, res)
		}
	}
	return failed
}

// ResourceResult is the outcome of exporting a single resource.
type ResourceResult struct {
	Resource   string        `json:"resource"`
	Items      int           `json:"items"`
	Total      int           `json:"total"`
	FilePath   string        `json:"file,omitempty"`
	Err        string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	Collection *Collection   `json:"-"`
}

// OK reports whether the resource exported without error.
func (r ResourceResult) OK() bool { return r.Err == "" }

// AuthEvent records an interactive login or a silent refresh.
type AuthEvent struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Grant     string    `json:"grant"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
