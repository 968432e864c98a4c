package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ecocal/internal/agenda"
	"ecocal/internal/calendar"
	"ecocal/internal/config"
	"ecocal/internal/holiday"
	"ecocal/internal/ics"
	appLog "ecocal/internal/log"
	"ecocal/internal/metrics"
	"ecocal/internal/scheduler"
)

// AgendaSource builds agendas on demand. *agenda.Builder implements it.
type AgendaSource interface {
	Weekly(ctx context.Context, days int) agenda.Agenda
}

// JobRunner triggers and reports jobs. *scheduler.Scheduler implements it.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Status() []scheduler.JobStatus
}

const (
	agendaCacheTTL = 30 * time.Second
	maxDays        = 31
)

// Server exposes the agenda, holidays, job triggers and metrics over HTTP.
type Server struct {
	cfg    *config.Config
	agenda AgendaSource
	jobs   JobRunner
	mux    *http.ServeMux
	now    func() time.Time

	// Per-window cache so browsing /api/agenda does not scrape the calendar
	// on every request.
	agendaMu    sync.RWMutex
	agendaCache map[int]*agendaCache
}

type agendaCache struct {
	built     agenda.Agenda
	updatedAt time.Time
}

// NewServer constructs a new Server. jobs may be nil when no scheduler runs.
func NewServer(cfg *config.Config, src AgendaSource, jobs JobRunner) *Server {
	s := &Server{
		cfg:         cfg,
		agenda:      src,
		jobs:        jobs,
		mux:         http.NewServeMux(),
		now:         time.Now,
		agendaCache: make(map[int]*agendaCache),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer serves until ctx is canceled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, src AgendaSource, jobs JobRunner) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, src, jobs).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("GET /api/holidays", s.handleHolidays)
	s.mux.HandleFunc("GET /api/jobs", s.handleJobs)
	s.mux.HandleFunc("POST /api/run/{job}", s.handleRun)
	s.mux.HandleFunc("GET /agenda.ics", s.handleICS)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health and /metrics.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="ecocal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	GeneratedAt     time.Time `json:"generated_at"`
	DisplayTimeZone string    `json:"display_timezone"`
	Days            int       `json:"days"`
	Failure         string    `json:"failure,omitempty"`
	Events          []dayDTO  `json:"events"`
}

type dayDTO struct {
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Country     string    `json:"country"`
	Importance  string    `json:"importance"`
	Stars       int       `json:"stars"`
	Instruments []string  `json:"instruments"`
	Origin      string    `json:"origin"`
	At          time.Time `json:"at"`
	Holidays    []string  `json:"holidays,omitempty"`
}

// handleAgenda returns the merged agenda.
//
// GET /api/agenda?days=7
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	days := s.daysParam(r)
	built := s.cachedAgenda(r.Context(), days)
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	resp := agendaResponse{
		GeneratedAt:     built.GeneratedAt,
		DisplayTimeZone: loc.String(),
		Days:            days,
		Events:          []dayDTO{},
	}
	if built.Failure != calendar.FailureNone {
		resp.Failure = built.Failure.String()
	}
	for _, d := range agenda.Annotate(built.Events) {
		ev := d.Event
		resp.Events = append(resp.Events, dayDTO{
			Date:        d.Key,
			Time:        ev.Time.String(),
			Name:        ev.Name,
			Description: ev.RawDescription,
			Country:     ev.Country.String(),
			Importance:  ev.Importance.String(),
			Stars:       ev.Importance.Stars(),
			Instruments: ev.Instruments,
			Origin:      ev.Origin.String(),
			At:          ev.At,
			Holidays:    d.Holidays,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type holidayDTO struct {
	Date   string   `json:"date"`
	Labels []string `json:"labels"`
}

// handleHolidays lists US/UK market holidays in the window.
//
// GET /api/holidays?days=30
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), 30)
	if days <= 0 || days > 366 {
		days = 30
	}
	loc := resolveLocationOrLocal(s.cfg.Timezone)

	out := []holidayDTO{}
	for _, h := range holiday.UpcomingHolidays(holiday.Civil(s.now().In(loc)), days) {
		out = append(out, holidayDTO{Date: h.Date.Format("2006-01-02"), Labels: h.Labels})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobs(w http.ResponseWriter, _ *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.Status())
}

// handleRun triggers a job synchronously.
//
// POST /api/run/{weekly|daily}
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}

	name := r.PathValue("job")
	switch name {
	case "weekly":
		name = scheduler.WeeklyAgenda
	case "daily":
		name = scheduler.DailyReminder
	}

	err := s.jobs.RunNow(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "ok"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeError(w, http.StatusNotFound, "unknown job")
	case errors.Is(err, scheduler.ErrJobRunning):
		writeError(w, http.StatusConflict, "job already running")
	default:
		appLog.Error("api run: job failed", err, "job", name)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// handleICS serves the weekly agenda as an iCalendar feed.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	built := s.cachedAgenda(r.Context(), s.cfg.Schedule.WeeklyDays)
	body, err := ics.Render(agenda.Annotate(built.Events), ics.DefaultProdID, built.GeneratedAt)
	if err != nil {
		appLog.Error("api ics: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="agenda.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) daysParam(r *http.Request) int {
	def := s.cfg.Schedule.WeeklyDays
	if def <= 0 {
		def = 7
	}
	days := parseIntDefault(r.URL.Query().Get("days"), def)
	if days <= 0 || days > maxDays {
		days = def
	}
	return days
}

func (s *Server) cachedAgenda(ctx context.Context, days int) agenda.Agenda {
	now := s.now()

	s.agendaMu.RLock()
	c := s.agendaCache[days]
	s.agendaMu.RUnlock()
	if c != nil && now.Sub(c.updatedAt) < agendaCacheTTL {
		return c.built
	}

	appLog.Info("api agenda request", "days", days, "timezone", s.cfg.Timezone)
	built := s.agenda.Weekly(ctx, days)

	s.agendaMu.Lock()
	s.agendaCache[days] = &agendaCache{built: built, updatedAt: now}
	s.agendaMu.Unlock()
	return built
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
