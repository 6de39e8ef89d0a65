// Package services implements the Spotify Web API client used by the exporter.
//
// # Spotify Client
//
// [SpotifyService] issues authenticated GET requests. Before each request it asks its
// [TokenSource] for a fresh credential and waits on a shared [rate.Limiter], so refreshes and
// throttling apply uniformly to every page of every resource.
//
// [SpotifyService.FetchPage] addresses pages by offset or by cursor according to the
// [models.PageDescriptor] and unwraps named envelopes such as {"artists": {...}}.
//
// # Resource Catalog
//
// [Describe] returns the descriptor for each exportable resource. Playlists carry a child
// descriptor for their tracks with a field filter that keeps the payload small.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrTokenExpired] : the API answered 401
//   - [shared.ErrRateLimited] : the API answered 429
//   - [shared.ErrAPIRequest] : any other non-2xx answer or an undecodable body
//   - [shared.ErrNetwork] : the request never got an answer
package services
