// Package api serves the two HTTP listeners: the call-upload endpoint used by
// scanner clients and the stats endpoints read by the dashboard.
package api

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/j-veylop/rdio-stats/internal/logger"
	"github.com/j-veylop/rdio-stats/internal/metrics"
	"github.com/j-veylop/rdio-stats/internal/models"
	"github.com/j-veylop/rdio-stats/internal/stats"
	"github.com/j-veylop/rdio-stats/internal/uploads"
)

// Response bodies of the upload endpoint. Scanner clients match on them.
const (
	MsgImported   = "Call imported successfully."
	MsgIncomplete = "Incomplete call data: no talkgroup"
)

const (
	defaultMaxMemory = 32 << 20
	maxJSONBody      = 1 << 20
)

// Backend is what the handlers need from the stats layer.
type Backend interface {
	Ingest(ctx context.Context, talkgroupID string) (*stats.Result, error)
	Summary(ctx context.Context) (*models.Summary, error)
	Ping(ctx context.Context) error
}

// Config configures both routers.
type Config struct {
	// APIKey enables the upload gate when non-empty.
	APIKey string
	// RateLimit is uploads per minute per client IP; 0 disables it.
	RateLimit int
	// MaxMemory bounds the in-memory part of multipart bodies.
	MaxMemory int64

	CORSOrigins []string
	// PublicDir is served at / on the query listener when non-empty.
	PublicDir     string
	NotifyEnabled bool
}

// Handler holds the HTTP handlers.
type Handler struct {
	backend Backend
	spool   *uploads.Spool
	cfg     Config
}

// NewHandler creates the handlers. spool may be nil, in which case
// attachments are dropped without being spooled.
func NewHandler(backend Backend, spool *uploads.Spool, cfg Config) *Handler {
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = defaultMaxMemory
	}
	return &Handler{
		backend: backend,
		spool:   spool,
		cfg:     cfg,
	}
}

// CallUpload handles POST /api/call-upload.
//
// Every parseable request gets a 200, including those without a talkgroup,
// because clients probe connectivity with empty uploads. Only a store
// failure yields a 5xx.
func (h *Handler) CallUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	talkgroup, files := h.parseUpload(w, r)
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log.Debug("failed to remove multipart temp files", "error", err)
			}
		}()
	}

	if h.spool != nil && len(files) > 0 {
		paths, err := h.spool.Save(files)
		defer h.spool.Discard(paths)
		if err != nil {
			log.Debug("failed to spool attachment", "error", err)
		}
	}

	res, err := h.backend.Ingest(ctx, talkgroup)
	switch {
	case errors.Is(err, stats.ErrIncomplete):
		metrics.RecordIncomplete()
		log.Debug("upload without talkgroup", "attachments", len(files))
		writeText(w, http.StatusOK, MsgIncomplete)

	case err != nil:
		metrics.RecordIngestFailure()
		log.Error("failed to record call", "talkgroup", talkgroup, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to record call")

	default:
		metrics.RecordIngest(res.Talkgroup.Category, res.Time)
		log.Info("call recorded",
			"talkgroup", res.Key,
			"category", res.Talkgroup.Category,
			"attachments", len(files),
		)
		writeText(w, http.StatusOK, MsgImported)
	}
}

// parseUpload extracts the talkgroup and attachments from a multipart,
// form-encoded or JSON body. Unparseable bodies yield an empty talkgroup.
func (h *Handler) parseUpload(w http.ResponseWriter, r *http.Request) (string, []*multipart.FileHeader) {
	log := logger.FromContext(r.Context())
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(h.cfg.MaxMemory); err != nil {
			log.Debug("failed to parse multipart upload", "error", err)
			return "", nil
		}
		var files []*multipart.FileHeader
		for _, headers := range r.MultipartForm.File {
			files = append(files, headers...)
		}
		return r.FormValue("talkgroup"), files

	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&body); err != nil {
			log.Debug("failed to parse JSON upload", "error", err)
			return "", nil
		}
		return talkgroupValue(body["talkgroup"]), nil

	default:
		if err := r.ParseForm(); err != nil {
			log.Debug("failed to parse form upload", "error", err)
			return "", nil
		}
		return r.FormValue("talkgroup"), nil
	}
}

// talkgroupValue accepts the talkgroup as a JSON string or number.
func talkgroupValue(v any) string {
	switch tg := v.(type) {
	case string:
		return tg
	case float64:
		return strconv.FormatFloat(tg, 'f', -1, 64)
	default:
		return ""
	}
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Hourly handles GET /api/stats/hourly.
func (h *Handler) Hourly(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.HourlySeries(summary))
}

// Talkgroups handles GET /api/stats/talkgroups?limit=N.
func (h *Handler) Talkgroups(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stats.TopTalkgroups(summary, limit))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) (*models.Summary, bool) {
	summary, err := h.backend.Summary(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to build stats snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load statistics")
		return nil, false
	}
	return summary, true
}

// configResponse exposes feature flags to the dashboard.
type configResponse struct {
	Notify struct {
		Enabled bool `json:"enabled"`
	} `json:"notify"`
}

// Config handles GET /api/config.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	var resp configResponse
	resp.Notify.Enabled = h.cfg.NotifyEnabled
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /api/health on both listeners.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Ping(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
