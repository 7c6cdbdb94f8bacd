package handler

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/postgres"
)

// Config holds the URLs of backend services that the gateway proxies to.
type Config struct {
	RecordIngestURL string
	CoordinatorURL  string
}

// Handler implements the API gateway's HTTP endpoints.
// It proxies requests to backend services and provides direct
// record retrieval and API key management via PostgreSQL.
type Handler struct {
	ingestProxy      *httputil.ReverseProxy
	coordinatorProxy *httputil.ReverseProxy
	db               *postgres.Client
	keyValidator     *apikey.Validator
	logger           *slog.Logger
}

// New creates a gateway Handler that proxies to the given backend URLs.
func New(cfg Config, db *postgres.Client, keyValidator *apikey.Validator) *Handler {
	return &Handler{
		ingestProxy:      newProxy(cfg.RecordIngestURL),
		coordinatorProxy: newProxy(cfg.CoordinatorURL),
		db:               db,
		keyValidator:     keyValidator,
		logger:           slog.Default().With("component", "gateway-handler"),
	}
}

func newProxy(target string) *httputil.ReverseProxy {
	u, _ := url.Parse(target)
	return httputil.NewSingleHostReverseProxy(u)
}

// ---------- Proxy handlers ----------

// ProxyIngest forwards record ingestion requests to the ingest service.
func (h *Handler) ProxyIngest(w http.ResponseWriter, r *http.Request) {
	h.ingestProxy.ServeHTTP(w, r)
}

// ProxyConsume forwards bulk-consume requests to the coordinator service.
func (h *Handler) ProxyConsume(w http.ResponseWriter, r *http.Request) {
	h.coordinatorProxy.ServeHTTP(w, r)
}

// ---------- Direct data handlers ----------

// GetRecord retrieves a single record's metadata from PostgreSQL by UUID.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	var rec struct {
		UUID           string    `json:"uuid"`
		Path           string    `json:"path"`
		ShardID        int       `json:"shard_id"`
		IndexTime      int64     `json:"index_time"`
		Deleted        bool      `json:"deleted"`
		IdempotencyKey *string   `json:"idempotency_key,omitempty"`
		Status         string    `json:"status"`
	}

	err := h.db.DB.QueryRowContext(r.Context(),
		`SELECT uuid, path, shard_id, index_time, deleted, idempotency_key, status
		 FROM records WHERE uuid = $1`, id,
	).Scan(&rec.UUID, &rec.Path, &rec.ShardID, &rec.IndexTime, &rec.Deleted,
		&rec.IdempotencyKey, &rec.Status)

	if err == sql.ErrNoRows {
		h.writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to fetch record", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to fetch record")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// ListRecords returns a paginated list of record metadata.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	rows, err := h.db.DB.QueryContext(r.Context(),
		`SELECT uuid, path, shard_id, status, index_time
		 FROM records ORDER BY index_time DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		h.logger.Error("failed to list records", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	defer rows.Close()

	type recordSummary struct {
		UUID      string `json:"uuid"`
		Path      string `json:"path"`
		ShardID   int    `json:"shard_id"`
		Status    string `json:"status"`
		IndexTime int64  `json:"index_time"`
	}

	records := make([]recordSummary, 0)
	for rows.Next() {
		var rs recordSummary
		if err := rows.Scan(&rs.UUID, &rs.Path, &rs.ShardID, &rs.Status, &rs.IndexTime); err != nil {
			h.logger.Error("failed to scan record row", "error", err)
			continue
		}
		records = append(records, rs)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
		"limit":   limit,
		"offset":  offset,
	})
}

// ---------- Admin handlers ----------

// CreateAPIKey creates a new API key and returns the raw key (shown once).
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
		ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "720h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 100
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid expires_in duration")
			return
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}

	key, err := h.keyValidator.CreateKey(r.Context(), req.Name, req.RateLimit, expiresAt)
	if err != nil {
		h.logger.Error("failed to create api key", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create api key")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
		"name":    req.Name,
		"message": "store this key securely — it cannot be retrieved again",
	})
}

// ListAPIKeys returns all active API keys (without hashes).
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyValidator.ListKeys(r.Context())
	if err != nil {
		h.logger.Error("failed to list api keys", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list api keys")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"keys":  keys,
		"count": len(keys),
	})
}

// ---------- Health ----------

// Health returns the gateway's health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "gateway"})
}

// ---------- Helpers ----------

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
