package httpserver

import (
	"net/http"
	"time"
)

// headerTimeout caps how long a client may dribble request headers. Body
// deadlines are left to the per-route timeout middleware: webhook deliveries
// and extraction triggers carry bodies that outlive a header-scale limit.
const headerTimeout = 5 * time.Second

// New builds the server for the case API.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: headerTimeout,
	}
}
