// Package auth implements the Spotify authorization flows and the token lifecycle.
//
// [Finalizer] validates the parameters the callback page submits and turns them into a
// [models.Credential]: directly for the implicit grant, through one token exchange for the
// authorization-code grant. [InteractiveFlow] wires it to the loopback server and the browser.
//
// [Manager] owns the credential for the life of the process. It moves between four states:
//
//	NoToken -> Valid <-> Expired
//	              \         \
//	               +-> Fatal <+
//
// A token is refreshed when now >= issued_at + expires_in - margin. [TokenFile] keeps the refresh
// token on disk so later runs can re-authenticate without a browser.
package auth
