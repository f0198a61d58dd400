package server

import (
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// WrapH2C: wraps a handler with HTTP/2 Cleartext support, giving reverse
// proxies multiplexing and header compression without TLS termination here.
func WrapH2C(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{})
}
