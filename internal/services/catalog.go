package services

import (
	"fmt"
	"net/url"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/shared"
)

// MaxPageSize is the largest limit Spotify accepts on library endpoints.
const MaxPageSize = 50

// playlistTrackFields trims playlist items to what the export keeps.
const playlistTrackFields = "total,items(added_by.id,added_at,track(id,name,uri,duration_ms,album(album_type,name,release_date,artists(id,name)),artists(id,name)))"

type resourceSpec struct {
	endpoint string
	mode     models.PaginationMode
	query    map[string]string
	envelope string
	child    bool
}

var catalog = map[string]resourceSpec{
	"tracks":     {endpoint: "/me/tracks"},
	"albums":     {endpoint: "/me/albums"},
	"audiobooks": {endpoint: "/me/audiobooks"},
	"episodes":   {endpoint: "/me/episodes"},
	"shows":      {endpoint: "/me/shows"},
	"playlists":  {endpoint: "/me/playlists", child: true},
	"artists": {
		endpoint: "/me/following",
		mode:     models.CursorMode,
		query:    map[string]string{"type": "artist"},
		envelope: "artists",
	},
}

// Resources lists every exportable resource in export order.
func Resources() []string {
	return []string{"tracks", "albums", "audiobooks", "episodes", "shows", "playlists", "artists"}
}

// Describe returns the descriptor for resource, clamping pageSize to 1..[MaxPageSize].
func Describe(resource string, pageSize int) (models.PageDescriptor, error) {
	spec, ok := catalog[resource]
	if !ok {
		return models.PageDescriptor{}, fmt.Errorf("%w: %q", shared.ErrUnknownResource, resource)
	}

	pageSize = clampPageSize(pageSize)
	desc := models.PageDescriptor{
		Resource: resource,
		Endpoint: spec.endpoint,
		PageSize: pageSize,
		Mode:     spec.mode,
		Query:    spec.query,
		Envelope: spec.envelope,
	}

	if spec.child {
		desc.Child = &models.ChildDescriptor{
			Field: "tracks",
			Describe: func(id string) models.PageDescriptor {
				return PlaylistTracks(id, pageSize)
			},
		}
	}
	return desc, nil
}

// PlaylistTracks describes the tracks of one playlist.
func PlaylistTracks(playlistID string, pageSize int) models.PageDescriptor {
	return models.PageDescriptor{
		Resource: "playlist_tracks",
		Endpoint: "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		PageSize: clampPageSize(pageSize),
		Mode:     models.OffsetMode,
		Query:    map[string]string{"fields": playlistTrackFields},
	}
}

// DescribeAll resolves names into descriptors, rejecting unknown names.
func DescribeAll(resources []string, pageSize int) ([]models.PageDescriptor, error) {
	descs := make([]models.PageDescriptor, 0, len(resources))
	for _, name := range resources {
		desc, err := Describe(name, pageSize)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func clampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
