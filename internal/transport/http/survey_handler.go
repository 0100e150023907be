package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"survey-service/internal/app"
	"survey-service/internal/domain"
)

// SurveyHandler exposes the survey flow as a JSON API.
type SurveyHandler struct {
	service  *app.SurveyService
	segments SegmentProvider
	session  SessionCookie
	log      *zap.Logger
}

func NewSurveyHandler(service *app.SurveyService, segments SegmentProvider, session SessionCookie, log *zap.Logger) *SurveyHandler {
	if segments == nil {
		segments = HeaderSegments{}
	}
	if session.Name == "" {
		session.Name = "survey_session"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SurveyHandler{service: service, segments: segments, session: session, log: log.Named("http")}
}

// EntryPath is the address of a survey's first step.
func EntryPath(slug string) string {
	return "/surveys/" + url.PathEscape(slug)
}

// SuccessPath is the address of a survey's thank-you view.
func SuccessPath(slug string) string {
	return EntryPath(slug) + "/success"
}

func targetPath(t app.Target) string {
	if t.ThankYou {
		return SuccessPath(t.Slug)
	}
	return EntryPath(t.Slug)
}

type stepView struct {
	Outcome      string             `json:"outcome"`
	Mode         app.Mode           `json:"mode"`
	Survey       domain.Survey      `json:"survey"`
	Step         int                `json:"step,omitempty"`
	NumSteps     int                `json:"numSteps"`
	Questions    []domain.Question  `json:"questions,omitempty"`
	Values       url.Values         `json:"values,omitempty"`
	Errors       domain.FieldErrors `json:"errors,omitempty"`
	Intermediate bool               `json:"intermediate"`
	Action       string             `json:"action,omitempty"`
	Location     string             `json:"location,omitempty"`
	SubmissionID string             `json:"submissionId,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeSurvey handles GET and POST on /surveys/{slug}.
func (h *SurveyHandler) ServeSurvey(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	submit := r.Method == http.MethodPost
	if submit {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid form body"})
			return
		}
	}

	resp, err := h.service.Serve(r.Context(), app.Request{
		Slug:      slug,
		Page:      r.URL.Query().Get("p"),
		Submit:    submit,
		Form:      r.PostForm,
		SessionID: h.session.ID(w, r),
		UserID:    userID(r),
		Cohorts:   h.segments.Segments(r),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	requestsTotal.WithLabelValues(string(resp.Mode), resp.Outcome.String()).Inc()
	view := stepView{
		Outcome:      resp.Outcome.String(),
		Mode:         resp.Mode,
		Survey:       resp.Survey,
		Step:         resp.Step,
		NumSteps:     resp.NumSteps,
		Questions:    resp.Questions,
		Values:       resp.Values,
		Errors:       resp.Errors,
		Intermediate: resp.Intermediate,
	}

	switch resp.Outcome {
	case app.OutcomeRedirect:
		submissionsTotal.Inc()
		view.Location = targetPath(resp.Redirect)
		view.SubmissionID = resp.SubmissionID
		w.Header().Set("Location", view.Location)
		writeJSON(w, http.StatusSeeOther, view)
	case app.OutcomeLoginRequired:
		writeJSON(w, http.StatusUnauthorized, view)
	case app.OutcomeCompleted:
		writeJSON(w, http.StatusOK, view)
	default:
		if len(resp.Errors) > 0 {
			stepErrorsTotal.Inc()
		}
		view.Action = EntryPath(slug)
		if resp.NextPage > 0 {
			view.Action += fmt.Sprintf("?p=%d", resp.NextPage)
		}
		status := http.StatusOK
		if len(resp.Errors) > 0 {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, view)
	}
}

// ServeSuccess handles GET /surveys/{slug}/success.
func (h *SurveyHandler) ServeSuccess(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Success(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ServeResults handles GET /surveys/{slug}/results.
func (h *SurveyHandler) ServeResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type articleRequest struct {
	ArticleRef string `json:"articleRef"`
}

// AttachArticle handles PUT /submissions/{id}/article.
func (h *SurveyHandler) AttachArticle(w http.ResponseWriter, r *http.Request) {
	var body articleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.ArticleRef) == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "articleRef is required"})
		return
	}
	if err := h.service.AttachArticle(r.Context(), mux.Vars(r)["id"], body.ArticleRef); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrSurveyNotFound),
		errors.Is(err, domain.ErrNotInCohort),
		errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrResultsHidden):
		writeJSON(w, http.StatusNotFound, errorPayload{Message: err.Error()})
	case errors.Is(err, domain.ErrSessionRequired):
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorPayload{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
