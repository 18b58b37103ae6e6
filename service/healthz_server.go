package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthzPath is the liveness route
const HealthzPath = "/healthz"

// HealthzServer answers liveness checks while the launcher runs
type HealthzServer struct {
	httpServer
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthzPath, h.Handle)
	origins := cors.New(cors.Options{AllowedOrigins: []string{"*"}})
	return h.serve(ctx, addr, origins.Handler(mux))
}

// Handle replies OK to GET and HEAD requests
func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	log.Trace("Health check", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, _ = w.Write([]byte("OK"))
}
