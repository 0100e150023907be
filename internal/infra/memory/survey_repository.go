package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"survey-service/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store by id or slug.
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, ref string) (domain.Survey, error)
}

// SurveyRepository caches surveys with TTL to avoid repeated DB hits.
type SurveyRepository struct {
	loader SurveyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSurvey
}

type cachedSurvey struct {
	survey    domain.Survey
	expiresAt time.Time
}

func NewSurveyRepository(loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSurvey),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, ref string) (domain.Survey, error) {
	if survey, ok := r.cached(ref); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(ref, func() (interface{}, error) {
		if survey, ok := r.cached(ref); ok {
			return survey, nil
		}
		survey, err := r.loader.LoadSurvey(ctx, ref)
		if err != nil {
			return domain.Survey{}, err
		}

		r.mu.Lock()
		r.cache[ref] = cachedSurvey{
			survey:    survey,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

func (r *SurveyRepository) cached(ref string) (domain.Survey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[ref]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Survey{}, false
	}
	return entry.survey, true
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticSurveyLoader is a loader backed by an in-memory set of surveys (useful for tests/demos).
type StaticSurveyLoader struct {
	mu      sync.RWMutex
	surveys map[string]domain.Survey
}

func NewStaticSurveyLoader(surveys ...domain.Survey) *StaticSurveyLoader {
	l := &StaticSurveyLoader{surveys: make(map[string]domain.Survey, len(surveys))}
	for _, s := range surveys {
		l.Put(s)
	}
	return l
}

// Put adds or replaces a survey.
func (l *StaticSurveyLoader) Put(s domain.Survey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.surveys[s.ID] = s
}

func (l *StaticSurveyLoader) LoadSurvey(_ context.Context, ref string) (domain.Survey, error) {
	if survey, ok := l.Lookup(ref); ok {
		return survey, nil
	}
	return domain.Survey{}, domain.ErrSurveyNotFound
}

// Lookup finds a survey by id or slug.
func (l *StaticSurveyLoader) Lookup(ref string) (domain.Survey, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if survey, ok := l.surveys[ref]; ok {
		return survey, true
	}
	for _, survey := range l.surveys {
		if survey.Slug == ref {
			return survey, true
		}
	}
	return domain.Survey{}, false
}

// All returns every survey.
func (l *StaticSurveyLoader) All() []domain.Survey {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Survey, 0, len(l.surveys))
	for _, s := range l.surveys {
		out = append(out, s)
	}
	return out
}
