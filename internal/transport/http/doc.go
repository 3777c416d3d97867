// Package http contains the HTTP transport layer for the dashboard
// API. Handlers decode requests, delegate to the services layer, and
// render JSON responses; failures are reported as RFC 7807 problem
// details through the shared error handler.
package http
