// Package server provides the loopback HTTP server that completes browser-delegated authorization.
//
// # Router Infrastructure
//
// [BasicRouter] registers [Handler] implementations on an [http.ServeMux] behind a shared
// [Middleware] stack; the first middleware added is the outermost wrapper.
//
// # Callback Handler
//
// [CallbackHandler] is a three-phase state machine:
//
//	awaiting-redirect -> awaiting-finalize -> done
//
// The provider redirects the browser to /callback. Implicit-grant parameters arrive in the URL
// fragment, which never reaches the server, so every non-finalize request is answered with a small
// embedded page whose script copies fragment and query parameters into a request to
// /finalizeAuthentication. That request is handed to a [FinalizeFunc] and its outcome is delivered
// once on [CallbackHandler.Result]. Later requests get 410 Gone.
//
// # Loopback Server
//
// [Listen] binds the port before the browser is opened. [LoopbackServer.Await] serves until the
// handler reports, a timeout elapses, or the context ends, and always releases the port.
package server
