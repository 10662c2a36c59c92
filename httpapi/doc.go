// Package httpapi exposes the credential broker over HTTP. Routes dispatch
// through the command and query handlers and render broker errors as
// {"error", "code"} JSON envelopes.
package httpapi
