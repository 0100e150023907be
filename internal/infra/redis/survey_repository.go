package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"survey-service/internal/domain"
)

// SurveyLoader fetches survey definitions from a backing store by id or slug.
type SurveyLoader interface {
	LoadSurvey(ctx context.Context, ref string) (domain.Survey, error)
}

// SurveyRepository caches survey definitions in Redis and falls back to a
// loader on cache miss. A survey is stored as JSON under both its id and slug:
//
//	SET survey:{ref} {json} EX ttl
type SurveyRepository struct {
	client *redis.Client
	loader SurveyLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSurveyRepository(client *redis.Client, loader SurveyLoader, ttl time.Duration) *SurveyRepository {
	return &SurveyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *SurveyRepository) GetSurvey(ctx context.Context, ref string) (domain.Survey, error) {
	if survey, ok := r.cached(ctx, ref); ok {
		return survey, nil
	}

	result, err, _ := r.sf.Do(ref, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if survey, ok := r.cached(ctx, ref); ok {
			return survey, nil
		}
		survey, err := r.loader.LoadSurvey(ctx, ref)
		if err != nil {
			return domain.Survey{}, err
		}
		r.store(ctx, survey)
		return survey, nil
	})
	if err != nil {
		return domain.Survey{}, err
	}
	return result.(domain.Survey), nil
}

// Invalidate removes the cached copies of survey.
func (r *SurveyRepository) Invalidate(ctx context.Context, survey domain.Survey) error {
	return r.client.Del(ctx, r.key(survey.ID), r.key(survey.Slug)).Err()
}

func (r *SurveyRepository) cached(ctx context.Context, ref string) (domain.Survey, bool) {
	raw, err := r.client.Get(ctx, r.key(ref)).Bytes()
	if err != nil {
		return domain.Survey{}, false
	}
	var survey domain.Survey
	if err := json.Unmarshal(raw, &survey); err != nil {
		return domain.Survey{}, false
	}
	return survey, true
}

// store is best effort; a failed write only costs another load.
func (r *SurveyRepository) store(ctx context.Context, survey domain.Survey) {
	raw, err := json.Marshal(survey)
	if err != nil {
		return
	}
	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(survey.ID), raw, ttl)
	if survey.Slug != "" && survey.Slug != survey.ID {
		pipe.Set(ctx, r.key(survey.Slug), raw, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

func (r *SurveyRepository) key(ref string) string {
	return "survey:" + ref
}

func (r *SurveyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
