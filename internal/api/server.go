package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"reminderd/internal/directory"
	"reminderd/internal/domain"
	"reminderd/internal/jobstore"
	"reminderd/internal/reminder"
	"reminderd/internal/schedule"
)

type Server struct {
	r     *chi.Mux
	svc   *reminder.Service
	store jobstore.Store
	dir   directory.Reader
}

func NewServer(svc *reminder.Service, store jobstore.Store, dir directory.Reader) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{r: r, svc: svc, store: store, dir: dir}

	r.Get("/health", s.health)
	r.Post("/api/reminders", s.scheduleReminder)
	r.Delete("/api/reminders/{id}", s.cancelReminder)
	r.Get("/api/jobs", s.listJobs)
	r.Get("/api/jobs/{id}", s.getJob)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type scheduleReq struct {
	UserID    string `json:"user_id"`
	EventID   string `json:"event_id"`
	EventTime string `json:"event_time"` // RFC 3339, zone required
}

type scheduleResp struct {
	Job     map[string]any `json:"job"`
	Message string         `json:"message,omitempty"`
}

func (s *Server) scheduleReminder(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	eventTime, err := time.Parse(time.RFC3339, req.EventTime)
	if err != nil {
		http.Error(w, "event_time must be an RFC 3339 timestamp", 400)
		return
	}

	job, err := s.svc.ScheduleReminder(r.Context(), req.UserID, req.EventID, eventTime)
	if errors.Is(err, reminder.ErrMissingReference) || errors.Is(err, schedule.ErrInvalidTimestamp) {
		http.Error(w, err.Error(), 400)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	resp := scheduleResp{Job: jobJSON(job)}
	if ev, err := s.dir.Event(r.Context(), req.EventID); err == nil {
		resp.Message = s.svc.Confirmation(ev.Name, eventTime)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) cancelReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.svc.CancelReminder(id) {
		http.Error(w, "no armed reminder with that id", 404)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, err := s.store.Get(r.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, jobJSON(j))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobJSON(j))
	}
	writeJSON(w, 200, out)
}

func jobJSON(j domain.Job) map[string]any {
	m := map[string]any{
		"id":            j.ID,
		"run_at":        j.RunAt.Format(time.RFC3339),
		"reminder_type": j.ReminderType,
		"job_type":      j.JobType,
		"status":        j.Status,
		"event_id":      j.EventID,
		"user_id":       j.UserID,
		"created_at":    j.CreatedAt.Format(time.RFC3339),
	}
	if j.SentAt != nil {
		m["sent_at"] = j.SentAt.Format(time.RFC3339)
	}
	if j.ErrorMessage != nil {
		m["error_message"] = *j.ErrorMessage
	}
	return m
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
