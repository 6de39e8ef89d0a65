// package services talks to the Spotify Web API
package services

import (
	"context"

	"github.com/desertthunder/spotx/internal/models"
)

// TokenSource supplies a credential that is fresh enough for the next request.
//
// [auth.Manager] implements it; every request calls EnsureFresh before it is sent.
type TokenSource interface {
	EnsureFresh(ctx context.Context) (models.Credential, error)
}
