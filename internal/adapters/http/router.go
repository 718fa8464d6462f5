package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/kakeibo/internal/config"
	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
	"github.com/kirillkom/kakeibo/internal/observability/metrics"
)

const (
	statementFileField = "statement_file"
	// multipartOverhead is the slack allowed above the file cap for boundaries
	// and part headers.
	multipartOverhead   = 64 << 10
	maxJSONBodyBytes    = 64 << 10
	backpressureWait    = 50 * time.Millisecond
	defaultServiceLabel = "api"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type Router struct {
	cfg        config.Config
	statements ports.StatementSubmitter
	status     ports.StatusReporter
	profiles   ports.ProfileService
	ledger     ports.LedgerReader

	metrics        *metrics.HTTPServerMetrics
	metricsHandler http.Handler
}

func NewRouter(
	cfg config.Config,
	statements ports.StatementSubmitter,
	status ports.StatusReporter,
	profiles ports.ProfileService,
	ledger ports.LedgerReader,
) *Router {
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	return &Router{
		cfg:        cfg,
		statements: statements,
		status:     status,
		profiles:   profiles,
		ledger:     ledger,
	}
}

// WithMetrics records request metrics and serves handler on /metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics, handler http.Handler) *Router {
	rt.metrics = m
	rt.metricsHandler = handler
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/statements", requireOwner(rt.uploadStatement))
	api.HandleFunc("GET /v1/statements/status", requireOwner(rt.statementStatus))
	api.HandleFunc("GET /v1/profile", requireOwner(rt.getProfile))
	api.HandleFunc("PUT /v1/profile", requireOwner(rt.updateProfile))
	api.HandleFunc("GET /v1/ledger", requireOwner(rt.listLedger))
	api.HandleFunc("GET /v1/ledger/export", requireOwner(rt.exportLedger))

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, backpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", rt.healthz)
	if rt.metricsHandler != nil {
		root.Handle("GET /metrics", rt.metricsHandler)
	}
	root.Handle("/v1/", guarded)

	var handler http.Handler = root
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(defaultServiceLabel, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.UploadMaxBytes+multipartOverhead)

	file, header, err := r.FormFile(statementFileField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.recordUpload(string(domain.RejectSizeExceeded))
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error:  "statement exceeds the upload size limit",
				Reason: string(domain.RejectSizeExceeded),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "multipart field '" + statementFileField + "' is required"})
		return
	}
	defer file.Close()

	job, err := rt.statements.Submit(r.Context(), ownerFromContext(r.Context()), file, header.Size)
	if err != nil {
		rt.recordUpload(uploadOutcome(err))
		rt.writeError(w, r, err)
		return
	}
	rt.recordUpload("accepted")
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) statementStatus(w http.ResponseWriter, r *http.Request) {
	report, err := rt.status.Status(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := rt.profiles.GetProfile(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// updateProfile applies the request body over the stored preferences, so
// omitted fields keep their current values.
func (rt *Router) updateProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	current, err := rt.profiles.GetProfile(r.Context(), owner)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	prefs := current.Preferences
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&prefs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json: " + err.Error()})
		return
	}

	profile, err := rt.profiles.UpdatePreferences(r.Context(), owner, prefs)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *Router) listLedger(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := rt.ledger.ListEntries(r.Context(), ownerFromContext(r.Context()), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (rt *Router) exportLedger(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := rt.ledger.ExportEntries(r.Context(), ownerFromContext(r.Context()), &buf); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rt.ledger.ExportContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := errorBody{Error: err.Error()}
	if reason, ok := domain.RejectionReason(err); ok {
		body.Reason = string(reason)
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(defaultServiceLabel, outcome)
	}
}

func uploadOutcome(err error) string {
	if reason, ok := domain.RejectionReason(err); ok {
		return string(reason)
	}
	if domain.IsKind(err, domain.ErrJobInProgress) {
		return "in_progress"
	}
	return "error"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
