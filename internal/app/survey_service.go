package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"survey-service/internal/domain"
	"survey-service/internal/pkg/workerpool"
)

// SurveyRepository loads survey definitions by id or slug.
type SurveyRepository interface {
	GetSurvey(ctx context.Context, ref string) (domain.Survey, error)
}

// SessionRepository keeps per-visitor values (in-memory, Redis, etc).
// Values are opaque JSON documents.
type SessionRepository interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Delete(ctx context.Context, sessionID, key string) error
}

// SubmissionRepository persists finished submissions.
type SubmissionRepository interface {
	Create(ctx context.Context, sub domain.Submission) error
	HasUserSubmitted(ctx context.Context, surveyID, userID string) (bool, error)
	// List returns the submissions of a survey, oldest first.
	List(ctx context.Context, surveyID string) ([]domain.Submission, error)
	AttachArticle(ctx context.Context, submissionID, articleRef string) error
}

// EventPublisher announces finished submissions to other services.
type EventPublisher interface {
	PublishSubmission(ctx context.Context, sub domain.Submission) error
}

// JobQueue runs background work.
type JobQueue interface {
	Submit(job workerpool.Job) bool
}

const (
	completedKey      = "completed_surveys"
	partialKeyPrefix  = "survey_data-"
	publishAttempts   = 3
	publishRetryDelay = time.Second
)

func partialKey(surveyID string) string {
	return partialKeyPrefix + surveyID
}

// Mode is how a survey is presented.
type Mode string

const (
	ModeSinglePage Mode = "single"
	ModeMultiStep  Mode = "multi_step"
	ModeSkipLogic  Mode = "skip_logic"
)

// Outcome tells the transport what to do with a Response.
type Outcome int

const (
	// OutcomeRender shows a step, with errors when the submission was invalid.
	OutcomeRender Outcome = iota
	// OutcomeRedirect follows a finished submission.
	OutcomeRedirect
	// OutcomeCompleted is shown to visitors who already submitted.
	OutcomeCompleted
	// OutcomeLoginRequired asks an anonymous visitor to sign in.
	OutcomeLoginRequired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeCompleted:
		return "completed"
	case OutcomeLoginRequired:
		return "login_required"
	}
	return "unknown"
}

// Request is one GET or POST against a survey.
type Request struct {
	Slug      string
	Page      string
	Submit    bool
	Form      url.Values
	SessionID string
	UserID    string
	Cohorts   []string
}

// Response describes what to show. Survey never carries questions; the
// questions of the current step are in Questions. NextPage is the step number
// the rendered form posts to, zero for single page surveys.
type Response struct {
	Outcome      Outcome
	Mode         Mode
	Survey       domain.Survey
	Step         int
	NumSteps     int
	Questions    []domain.Question
	Values       url.Values
	Errors       domain.FieldErrors
	Intermediate bool
	NextPage     int
	Redirect     Target
	SubmissionID string
}

// SuccessView is the thank-you page of a survey.
type SuccessView struct {
	Survey  domain.Survey   `json:"survey"`
	Results *domain.Results `json:"results,omitempty"`
}

// SurveyService drives visitors through surveys and records their submissions.
type SurveyService struct {
	surveys     SurveyRepository
	sessions    SessionRepository
	submissions SubmissionRepository
	results     *ResultsHub
	events      EventPublisher
	jobs        JobQueue
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
}

// Option customizes a SurveyService.
type Option func(*SurveyService)

// WithResultsHub pushes fresh results to live subscribers after each submission.
func WithResultsHub(hub *ResultsHub) Option {
	return func(s *SurveyService) { s.results = hub }
}

// WithEvents publishes a submission event through jobs after each submission.
func WithEvents(publisher EventPublisher, jobs JobQueue) Option {
	return func(s *SurveyService) {
		s.events = publisher
		s.jobs = jobs
	}
}

// WithClock is for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *SurveyService) { s.now = now }
}

// WithIDGenerator is for deterministic submission ids in tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *SurveyService) { s.newID = newID }
}

func NewSurveyService(surveys SurveyRepository, sessions SessionRepository, submissions SubmissionRepository, log *zap.Logger, opts ...Option) *SurveyService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &SurveyService{
		surveys:     surveys,
		sessions:    sessions,
		submissions: submissions,
		log:         log.Named("survey"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type requestScope struct {
	req     Request
	survey  domain.Survey
	visible []domain.Question
}

func (sc *requestScope) response(mode Mode) Response {
	summary := sc.survey
	summary.Questions = nil
	summary.Rules = nil
	return Response{Mode: mode, Survey: summary}
}

// Serve handles one request against a survey.
func (s *SurveyService) Serve(ctx context.Context, req Request) (Response, error) {
	if req.SessionID == "" {
		return Response{}, domain.ErrSessionRequired
	}
	survey, err := s.surveys.GetSurvey(ctx, req.Slug)
	if err != nil {
		return Response{}, err
	}
	cohorts := newCohortSet(req.Cohorts)
	if !cohorts.allows(survey.CohortID) {
		return Response{}, domain.ErrNotInCohort
	}

	scope := &requestScope{req: req, survey: survey, visible: VisibleQuestions(survey.Questions, req.Cohorts)}
	mode := s.modeFor(scope)

	if !survey.AllowAnonymous && req.UserID == "" {
		resp := scope.response(mode)
		resp.Outcome = OutcomeLoginRequired
		return resp, nil
	}
	if !survey.AllowMultipleSubmissions {
		done, err := s.HasSubmitted(ctx, survey, req.SessionID, req.UserID)
		if err != nil {
			return Response{}, err
		}
		if done {
			resp := scope.response(mode)
			resp.Outcome = OutcomeCompleted
			return resp, nil
		}
	}

	switch mode {
	case ModeSkipLogic:
		return s.serveSteps(ctx, scope, mode, NewSkipLogicPaginator(scope.visible))
	case ModeMultiStep:
		return s.serveSteps(ctx, scope, mode, NewPaginator(scope.visible, 1))
	default:
		return s.serveSinglePage(ctx, scope)
	}
}

func (s *SurveyService) modeFor(scope *requestScope) Mode {
	switch {
	case HasSkipLogic(scope.visible):
		return ModeSkipLogic
	case scope.survey.MultiStep:
		return ModeMultiStep
	}
	return ModeSinglePage
}

func (s *SurveyService) serveSteps(ctx context.Context, scope *requestScope, mode Mode, pager *Paginator) (Response, error) {
	step, isLast := pager.Locate(scope.req.Page)
	if !scope.req.Submit {
		return renderStep(scope, mode, pager, step, nil, nil), nil
	}

	// The form posts to the step after the one it shows.
	prev := step
	if !isLast && step.Number > 1 {
		p, err := pager.Page(step.Number - 1)
		if err != nil {
			return Response{}, err
		}
		prev = p
	}

	data, err := s.loadPartial(ctx, scope.req.SessionID, scope.survey.ID)
	if err != nil {
		return Response{}, err
	}
	values, errs := NewForm(prev.Questions).WithAnswers(data).Validate(scope.req.Form)
	var lastAnswer any
	if q, ok := prev.LastQuestion(); ok {
		lastAnswer = values[q.ID]
	}
	if len(errs) == 0 {
		if _, err := prev.NextAction(lastAnswer); err != nil {
			var unknown *domain.UnknownChoiceError
			if !errors.As(err, &unknown) {
				return Response{}, err
			}
			errs.Add(unknown.QuestionID, errInvalidChoice(unknown.Choice).Error())
		}
	}
	if len(errs) > 0 {
		s.log.Debug("step rejected",
			zap.String("survey", scope.survey.ID),
			zap.Int("step", prev.Number),
			zap.Int("fields", len(errs)),
		)
		return renderStep(scope, mode, pager, prev, scope.req.Form, errs), nil
	}

	for id, v := range values {
		data[id] = v
	}
	if err := s.savePartial(ctx, scope.req.SessionID, scope.survey.ID, data); err != nil {
		return Response{}, err
	}

	if prev.HasNext(lastAnswer) {
		number, err := prev.NextNumber(lastAnswer)
		if err != nil {
			return Response{}, err
		}
		next, err := pager.Page(number)
		if err != nil {
			return Response{}, err
		}
		return renderStep(scope, mode, pager, next, nil, nil), nil
	}

	answers, errs := NewOptionalForm(pager.Questions()).Validate(toFormValues(data))
	if len(errs) == 0 {
		errs = checkSurveyRules(scope.survey.Rules, answers)
	}
	if len(errs) > 0 {
		return renderStep(scope, mode, pager, prev, scope.req.Form, errs), nil
	}

	target, err := s.resolveTarget(ctx, prev.SuccessTarget(lastAnswer, scope.survey.Slug))
	if err != nil {
		return Response{}, err
	}
	return s.finalize(ctx, scope, mode, answers, target)
}

func renderStep(scope *requestScope, mode Mode, pager *Paginator, step Step, values url.Values, errs domain.FieldErrors) Response {
	resp := scope.response(mode)
	resp.Outcome = OutcomeRender
	resp.Step = step.Number
	resp.NumSteps = pager.NumPages()
	resp.Questions = step.Questions
	resp.Values = values
	resp.Errors = errs
	resp.Intermediate = step.HasNext(nil)
	resp.NextPage = step.Number + 1
	return resp
}

func (s *SurveyService) serveSinglePage(ctx context.Context, scope *requestScope) (Response, error) {
	resp := scope.response(ModeSinglePage)
	resp.Outcome = OutcomeRender
	resp.Questions = scope.visible
	if len(scope.visible) > 0 {
		resp.Step, resp.NumSteps = 1, 1
	}
	if !scope.req.Submit {
		return resp, nil
	}

	answers, errs := NewForm(scope.visible).Validate(scope.req.Form)
	if len(errs) == 0 {
		errs = checkSurveyRules(scope.survey.Rules, answers)
	}
	if len(errs) > 0 {
		resp.Values = scope.req.Form
		resp.Errors = errs
		return resp, nil
	}
	return s.finalize(ctx, scope, ModeSinglePage, answers, Target{Slug: scope.survey.Slug, ThankYou: true})
}

// resolveTarget turns a jump to another survey into that survey's slug.
func (s *SurveyService) resolveTarget(ctx context.Context, target Target) (Target, error) {
	if target.SurveyID == "" {
		return target, nil
	}
	next, err := s.surveys.GetSurvey(ctx, target.SurveyID)
	if err != nil {
		return Target{}, fmt.Errorf("resolve skip target %s: %w", target.SurveyID, err)
	}
	target.Slug = next.Slug
	return target, nil
}

func (s *SurveyService) finalize(ctx context.Context, scope *requestScope, mode Mode, answers map[string]any, target Target) (Response, error) {
	sub := domain.Submission{
		ID:        s.newID(),
		SurveyID:  scope.survey.ID,
		UserID:    scope.req.UserID,
		Answers:   answers,
		CreatedAt: s.now().UTC(),
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		return Response{}, fmt.Errorf("store submission: %w", err)
	}

	// The submission is stored; session bookkeeping failures are not fatal past this point.
	if err := s.markCompleted(ctx, scope.req.SessionID, scope.survey.ID); err != nil {
		s.log.Warn("mark survey completed", zap.String("survey", scope.survey.ID), zap.Error(err))
	}
	if err := s.sessions.Delete(ctx, scope.req.SessionID, partialKey(scope.survey.ID)); err != nil {
		s.log.Warn("clear partial answers", zap.String("survey", scope.survey.ID), zap.Error(err))
	}
	s.log.Info("submission stored",
		zap.String("survey", scope.survey.ID),
		zap.String("submission", sub.ID),
		zap.String("mode", string(mode)),
	)

	s.afterSubmit(ctx, scope.survey, sub)

	resp := scope.response(mode)
	resp.Outcome = OutcomeRedirect
	resp.Redirect = target
	resp.SubmissionID = sub.ID
	return resp, nil
}

func (s *SurveyService) afterSubmit(ctx context.Context, survey domain.Survey, sub domain.Submission) {
	if s.results != nil && survey.ShowResults && s.results.HasSubscribers(survey.ID) {
		results, err := s.aggregate(ctx, survey)
		if err != nil {
			s.log.Warn("refresh results", zap.String("survey", survey.ID), zap.Error(err))
		} else {
			s.results.Publish(results)
		}
	}
	if s.events != nil && s.jobs != nil {
		job := workerpool.WithRetry(s.log, publishAttempts, publishRetryDelay, func(ctx context.Context) error {
			return s.events.PublishSubmission(ctx, sub)
		})
		if !s.jobs.Submit(job) {
			s.log.Warn("submission event dropped", zap.String("submission", sub.ID))
		}
	}
}

// HasSubmitted reports whether the visitor already finished the survey, by
// user id for signed-in visitors and by session otherwise.
func (s *SurveyService) HasSubmitted(ctx context.Context, survey domain.Survey, sessionID, userID string) (bool, error) {
	if userID != "" {
		done, err := s.submissions.HasUserSubmitted(ctx, survey.ID, userID)
		if err != nil || done {
			return done, err
		}
	}
	completed, err := s.completedSurveys(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return slices.Contains(completed, survey.ID), nil
}

func (s *SurveyService) completedSurveys(ctx context.Context, sessionID string) ([]string, error) {
	raw, ok, err := s.sessions.Get(ctx, sessionID, completedKey)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode completed surveys: %w", err)
	}
	return ids, nil
}

func (s *SurveyService) markCompleted(ctx context.Context, sessionID, surveyID string) error {
	ids, err := s.completedSurveys(ctx, sessionID)
	if err != nil {
		return err
	}
	if slices.Contains(ids, surveyID) {
		return nil
	}
	raw, err := json.Marshal(append(ids, surveyID))
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, sessionID, completedKey, raw)
}

func (s *SurveyService) loadPartial(ctx context.Context, sessionID, surveyID string) (map[string]any, error) {
	raw, ok, err := s.sessions.Get(ctx, sessionID, partialKey(surveyID))
	if err != nil {
		return nil, err
	}
	data := map[string]any{}
	if !ok {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode partial answers: %w", err)
	}
	return data, nil
}

func (s *SurveyService) savePartial(ctx context.Context, sessionID, surveyID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode partial answers: %w", err)
	}
	return s.sessions.Set(ctx, sessionID, partialKey(surveyID), raw)
}

// Success loads the thank-you view, with results when the survey shows them.
func (s *SurveyService) Success(ctx context.Context, slug string) (SuccessView, error) {
	survey, err := s.surveys.GetSurvey(ctx, slug)
	if err != nil {
		return SuccessView{}, err
	}
	view := SuccessView{Survey: survey}
	view.Survey.Questions = nil
	view.Survey.Rules = nil
	if survey.ShowResults {
		results, err := s.aggregate(ctx, survey)
		if err != nil {
			return SuccessView{}, err
		}
		view.Results = &results
	}
	return view, nil
}

// AttachArticle links a stored submission to an article created from it.
func (s *SurveyService) AttachArticle(ctx context.Context, submissionID, articleRef string) error {
	if err := s.submissions.AttachArticle(ctx, submissionID, articleRef); err != nil {
		return err
	}
	s.log.Info("article attached", zap.String("submission", submissionID), zap.String("article", articleRef))
	return nil
}
