// Package router wires up all API gateway routes and applies the middleware
// chain (RequestID → CORS → Auth → RateLimit).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/auth/ratelimit"
	gwhandler "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/gateway/handler"
	gwmw "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/gateway/middleware"
	pkgmw "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table:
//
//	POST   /api/v1/records             → ingest service      (proxy)
//	GET    /api/v1/records              → list records        (direct DB)
//	GET    /api/v1/records/{id}         → get record          (direct DB)
//	GET    /api/v1/consume              → coordinator service (proxy)
//	POST   /api/v1/admin/keys           → create API key       (direct DB)
//	GET    /api/v1/admin/keys           → list API keys        (direct DB)
//	GET    /health                      → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Auth → RateLimit → handler
func New(h *gwhandler.Handler, validator *apikey.Validator, limiter *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health", h.Health)

	// Record ingest API
	mux.HandleFunc("POST /api/v1/records", h.ProxyIngest)
	mux.HandleFunc("GET /api/v1/records", h.ListRecords)
	mux.HandleFunc("GET /api/v1/records/{id}", h.GetRecord)

	// Bulk-consume API
	mux.HandleFunc("GET /api/v1/consume", h.ProxyConsume)

	// Admin API
	mux.HandleFunc("POST /api/v1/admin/keys", h.CreateAPIKey)
	mux.HandleFunc("GET /api/v1/admin/keys", h.ListAPIKeys)

	// Middleware chain — applied inside-out:
	// request → RequestID → CORS → Auth → RateLimit → mux
	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter)(chain)
	chain = gwmw.Auth(validator)(chain)
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
