// Package models defines the data carried between the authentication, pagination, and export layers.
//
// The package contains three groups of types:
//
// 1. Authentication
//   - [Credential] : access token, token type, refresh token, and lifetime of the current session
//
// 2. Pagination
//   - [PageDescriptor] : immutable description of one paged Spotify collection
//   - [PageRequest] : the offset or cursor of a single page request
//   - [Page] : one decoded page envelope
//   - [Collection] : every item of a resource, in server order
//
// 3. Export bookkeeping
//   - [ExportRun] : one invocation of the export command
//   - [ResourceResult] : the outcome of exporting a single resource
//   - [AuthEvent] : an interactive login or silent refresh attempt
package models
