package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/detect"
	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/reconcile"
	"github.com/hamed0406/sitewatch/internal/recovery"
	"github.com/hamed0406/sitewatch/internal/repo"
)

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sites.All())
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Results.List(r.Context())
	if err != nil {
		s.Logger.Warn("api_list_results_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if rs == nil {
		rs = []domain.Result{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// handleGetResult looks a result up by name and, for a configured site,
// falls back to a result recorded under another name for the same origin.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	res, err := s.Results.Get(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if res != nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	site, ok := s.Sites.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	all, err := s.Results.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup error")
		return
	}
	if m, ok := reconcile.Match(site, all); ok {
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.Results.Delete(r.Context(), name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		s.Logger.Warn("api_delete_result_error", zap.String("site", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type refreshResponse struct {
	Result       domain.Result `json:"result"`
	AuthRequired bool          `json:"auth_required,omitempty"`
	Error        string        `json:"error,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	site, ok := s.Sites.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown site")
		return
	}
	opts := detect.SingleOptions{
		Quick:            r.URL.Query().Get("quick") == "1",
		ForceAcceptEmpty: r.URL.Query().Get("force_empty") == "1",
	}

	// the refresh completes even if the client goes away
	res, err := s.Detector.DetectSingle(context.WithoutCancel(r.Context()), site, opts)
	var authErr *detect.AuthError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, refreshResponse{Result: res})
	case errors.As(err, &authErr):
		writeJSON(w, http.StatusOK, refreshResponse{Result: res, AuthRequired: true, Error: authErr.Msg})
	case errors.Is(err, detect.ErrInProgress):
		writeError(w, http.StatusConflict, "refresh already in progress")
	case errors.Is(err, detect.ErrCancelled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.Logger.Warn("api_refresh_error", zap.String("site", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "refresh failed")
	}
}

type batchResponse struct {
	RunID   string            `json:"run_id"`
	Results []domain.Result   `json:"results"`
	Flagged []recovery.Record `json:"flagged"`
}

func (s *Server) handleDetectAll(w http.ResponseWriter, r *http.Request) {
	sites := detect.Enabled(s.Sites.All())
	rep, err := s.Detector.DetectAll(context.WithoutCancel(r.Context()), sites, detect.BatchOptions{
		Concurrency: s.Concurrency,
		Timeout:     s.Timeout,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flagged := rep.Flagged
	if flagged == nil {
		flagged = []recovery.Record{}
	}
	writeJSON(w, http.StatusOK, batchResponse{RunID: rep.RunID, Results: rep.Results, Flagged: flagged})
}

func (s *Server) handleListAuthErrors(w http.ResponseWriter, r *http.Request) {
	if s.Registry == nil {
		writeJSON(w, http.StatusOK, []recovery.Record{})
		return
	}
	writeJSON(w, http.StatusOK, s.Registry.List())
}

func (s *Server) handleDismissAuthError(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.Registry == nil || !s.Registry.Clear(name) {
		writeError(w, http.StatusNotFound, "not flagged")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	if s.Prompts == nil {
		writeJSON(w, http.StatusOK, []recovery.Prompt{})
		return
	}
	writeJSON(w, http.StatusOK, s.Prompts.Pending())
}

type answerPayload struct {
	Confirm *bool `json:"confirm"`
}

func (s *Server) handleAnswerPrompt(w http.ResponseWriter, r *http.Request) {
	var p answerPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Confirm == nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if s.Prompts == nil {
		writeError(w, http.StatusNotFound, "no pending prompt")
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.Prompts.Resolve(name, *p.Confirm); err != nil {
		writeError(w, http.StatusNotFound, "no pending prompt")
		return
	}
	s.Logger.Info("api_prompt_answered", zap.String("site", name), zap.Bool("confirm", *p.Confirm))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	if s.Timers == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, s.Timers.Timers())
}

func (s *Server) handleDetecting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Detector.Detecting())
}
