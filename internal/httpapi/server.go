package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/detect"
	"github.com/hamed0406/sitewatch/internal/domain"
	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/recovery"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/scheduler"
)

type Sites interface {
	All() []domain.Site
	Lookup(name string) (domain.Site, bool)
}

type Detector interface {
	DetectSingle(ctx context.Context, site domain.Site, opts detect.SingleOptions) (domain.Result, error)
	DetectAll(ctx context.Context, sites []domain.Site, opts detect.BatchOptions) (*detect.BatchReport, error)
	Detecting() []string
}

type Timers interface {
	Timers() []scheduler.TimerInfo
}

type Server struct {
	Logger   *zap.Logger
	Sites    Sites
	Results  repo.ResultStore
	Detector Detector
	Registry *recovery.Registry
	Prompts  *recovery.PromptQueue
	Timers   Timers // optional

	Concurrency int
	Timeout     time.Duration
}

type RouterOptions struct {
	Keys        apimw.Keys
	PublicRPM   int
	PublicBurst int
}

func (s *Server) Router(opts RouterOptions) http.Handler {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(opts.PublicRPM, opts.PublicBurst))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(opts.Keys))
			r.Get("/sites", s.handleListSites)
			r.Get("/results", s.handleListResults)
			r.Get("/results/{name}", s.handleGetResult)
			r.Get("/auth-errors", s.handleListAuthErrors)
			r.Get("/prompts", s.handleListPrompts)
			r.Get("/timers", s.handleListTimers)
			r.Get("/detecting", s.handleDetecting)
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(opts.Keys))
			r.Post("/sites/{name}/refresh", s.handleRefresh)
			r.Post("/detect", s.handleDetectAll)
			r.Delete("/results/{name}", s.handleDeleteResult)
			r.Delete("/auth-errors/{name}", s.handleDismissAuthError)
			r.Post("/prompts/{name}", s.handleAnswerPrompt)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
