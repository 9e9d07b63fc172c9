// Package httpserver builds the process HTTP server with shared timeouts.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the template and visit APIs. Visit submissions
// carry full answer sets, so the read timeout is generous relative to the
// header timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
