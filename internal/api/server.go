// internal/api/server.go
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "poultry-review/internal/common/errors"
	"poultry-review/internal/common/logger"
	"poultry-review/internal/models"
	"poultry-review/internal/review/engine"
	"poultry-review/internal/review/store"
)

// Server is the HTTP surface of the review service: workflow operations are
// POSTs delegating to the engine, reads go straight to the stores outside a
// workflow transaction.
type Server struct {
	engine *engine.Engine
	db     *sql.DB
	apps   *store.ApplicationStore
	queue  *store.QueueStore
	audit  *store.AuditRecorder
	logger logger.Logger
}

func NewServer(eng *engine.Engine, db *sql.DB, apps *store.ApplicationStore, queue *store.QueueStore, audit *store.AuditRecorder, log logger.Logger) *Server {
	return &Server{
		engine: eng,
		db:     db,
		apps:   apps,
		queue:  queue,
		audit:  audit,
		logger: log.WithFields(map[string]interface{}{"component": "http-api"}),
	}
}

// Handler builds the full route table, health endpoints and the Prometheus
// scrape included.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/applications", s.createApplication)
	mux.HandleFunc("GET /v1/applications/{id}", s.getApplication)
	mux.HandleFunc("GET /v1/applications/{id}/audit", s.getAudit)
	mux.HandleFunc("POST /v1/applications/{id}/submit", s.submit)
	mux.HandleFunc("POST /v1/applications/{id}/claim", s.claim)
	mux.HandleFunc("POST /v1/applications/{id}/approve", s.approve)
	mux.HandleFunc("POST /v1/applications/{id}/reject", s.reject)
	mux.HandleFunc("POST /v1/applications/{id}/request-changes", s.requestChanges)
	mux.HandleFunc("POST /v1/applications/{id}/resubmit", s.resubmit)
	mux.HandleFunc("POST /v1/applications/{id}/withdraw", s.withdraw)
	mux.HandleFunc("GET /v1/queues/{level}", s.listQueue)
	mux.HandleFunc("POST /v1/queues/{level}/assign-next", s.assignNext)

	return mux
}

func (s *Server) createApplication(w http.ResponseWriter, r *http.Request) {
	var app models.Application
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		s.writeError(w, apperrors.NewValidationFailedError("malformed application body: "+err.Error()))
		return
	}

	id, err := s.apps.Create(r.Context(), s.db, &app)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.apps.Get(r.Context(), s.db, r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if r.URL.Query().Get("verify") == "true" {
		result, err := s.engine.VerifyAudit(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"verified":      true,
			"derivedStatus": result.Status,
			"derivedLevel":  result.Level,
		})
		return
	}

	actions, err := s.audit.ListByApplication(r.Context(), s.db, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.Submit(r.Context(), r.PathValue("id"), body.Actor))
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OfficerID string             `json:"officerId"`
		Level     models.ReviewLevel `json:"level"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.Claim(r.Context(), r.PathValue("id"), body.OfficerID, body.Level))
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OfficerID string             `json:"officerId"`
		Level     models.ReviewLevel `json:"level"`
		Notes     string             `json:"notes"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.ApproveAndForward(r.Context(), r.PathValue("id"), body.OfficerID, body.Level, body.Notes))
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OfficerID string             `json:"officerId"`
		Level     models.ReviewLevel `json:"level"`
		Reason    string             `json:"reason"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.Reject(r.Context(), r.PathValue("id"), body.OfficerID, body.Level, body.Reason))
}

func (s *Server) requestChanges(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OfficerID    string             `json:"officerId"`
		Level        models.ReviewLevel `json:"level"`
		Feedback     string             `json:"feedback"`
		ChangeList   []string           `json:"changeList"`
		DeadlineDays int                `json:"deadlineDays"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.RequestChanges(r.Context(), r.PathValue("id"), body.OfficerID, body.Level, body.Feedback, body.ChangeList, body.DeadlineDays))
}

func (s *Server) resubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.ResubmitAfterChanges(r.Context(), r.PathValue("id"), body.Actor))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Actor string `json:"actor"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	s.run(w, s.engine.Withdraw(r.Context(), r.PathValue("id"), body.Actor))
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	level := models.ReviewLevel(r.PathValue("level"))
	if !level.Valid() {
		s.writeError(w, apperrors.NewValidationFailedError("unknown review level "+r.PathValue("level")))
		return
	}

	var jurisdiction *models.Jurisdiction
	q := r.URL.Query()
	if q.Get("constituency") != "" || q.Get("region") != "" {
		jurisdiction = &models.Jurisdiction{
			ConstituencyCode: q.Get("constituency"),
			RegionCode:       q.Get("region"),
		}
	}

	entries, err := s.queue.ListPending(r.Context(), s.db, level, jurisdiction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) assignNext(w http.ResponseWriter, r *http.Request) {
	level := models.ReviewLevel(r.PathValue("level"))
	if !level.Valid() {
		s.writeError(w, apperrors.NewValidationFailedError("unknown review level "+r.PathValue("level")))
		return
	}

	var body struct {
		ConstituencyCode string `json:"constituencyCode"`
		RegionCode       string `json:"regionCode"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	officerID, err := s.engine.AssignNext(r.Context(), level, models.Jurisdiction{
		ConstituencyCode: body.ConstituencyCode,
		RegionCode:       body.RegionCode,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assignedTo": officerID})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, apperrors.NewValidationFailedError("malformed request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) run(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrCodeValidationFailed:
		status = http.StatusBadRequest
	case apperrors.ErrCodePermission:
		status = http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeInvalidState, apperrors.ErrCodeAlreadyClaimed:
		status = http.StatusConflict
	case apperrors.ErrCodeTransient, apperrors.ErrCodeDatabaseConnectionFailed:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed", map[string]interface{}{"code": code})
	}

	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
