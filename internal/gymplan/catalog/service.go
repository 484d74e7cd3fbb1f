package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	megabyte            = 1024 * 1024
	defaultCacheSizeMB  = 8
	defaultCacheTTLSecs = 10 * 60
	globalCacheKey      = "exercises::global"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=catalog_test

type exercisesRepo interface {
	Add(ctx context.Context, exercise gymplan.Exercise) (*gymplan.Exercise, error)
	Get(ctx context.Context, id int) (*gymplan.Exercise, error)
	ListForUser(ctx context.Context, userID *int) ([]gymplan.Exercise, error)
	FindByName(ctx context.Context, userID int, name string) (*gymplan.Exercise, error)
}

type CreateExerciseParams struct {
	OwnerUserID *int
	Name        string
	MuscleGroup string
	Equipment   *string
	IsGlobal    bool
}

// Service owns the exercise catalog. Visible exercise lists are cached per user
// and dropped whenever an exercise in the same scope is created.
type Service struct {
	repo     exercisesRepo
	cache    *freecache.Cache
	cacheTTL int
}

func NewService(repo exercisesRepo, cacheSizeMB, cacheTTLSecs int) *Service {
	if cacheSizeMB <= 0 {
		cacheSizeMB = defaultCacheSizeMB
	}
	if cacheTTLSecs <= 0 {
		cacheTTLSecs = defaultCacheTTLSecs
	}
	return &Service{
		repo:     repo,
		cache:    freecache.NewCache(cacheSizeMB * megabyte),
		cacheTTL: cacheTTLSecs,
	}
}

func (s *Service) CreateExercise(ctx context.Context, params CreateExerciseParams) (_ *gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.gymplan.catalog.createExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, gymplan.Invalid("name", "must not be empty")
	}
	muscleGroup := strings.TrimSpace(params.MuscleGroup)
	if muscleGroup == "" {
		return nil, gymplan.Invalid("muscleGroup", "must not be empty")
	}
	if params.IsGlobal && params.OwnerUserID != nil {
		return nil, gymplan.Invalid("ownership", "exercise cannot be both global and user-owned")
	}
	if !params.IsGlobal && params.OwnerUserID == nil {
		return nil, gymplan.Invalid("ownership", "exercise must be either global or owned by a user")
	}

	added, err := s.repo.Add(ctx, gymplan.Exercise{
		Name:        name,
		MuscleGroup: muscleGroup,
		Equipment:   params.Equipment,
		IsGlobal:    params.IsGlobal,
		OwnerUserID: params.OwnerUserID,
	})
	if err != nil {
		return nil, fmt.Errorf("add exercise: %w", err)
	}
	span.SetAttributes(attribute.Int("exercise.id", added.ID))

	// a new global exercise is visible to every user
	if added.IsGlobal {
		s.cache.Clear()
	} else {
		s.cache.Del([]byte(userCacheKey(added.OwnerUserID)))
	}

	log.Debugf("catalog: exercise %d [%s] added, global: %t", added.ID, added.Name, added.IsGlobal)
	return added, nil
}

func (s *Service) Get(ctx context.Context, id int) (*gymplan.Exercise, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) FindByName(ctx context.Context, userID int, name string) (*gymplan.Exercise, error) {
	return s.repo.FindByName(ctx, userID, name)
}

// ListForUser returns the global exercises together with the user's own ones.
// A nil userID lists only global exercises.
func (s *Service) ListForUser(ctx context.Context, userID *int) (_ []gymplan.Exercise, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.gymplan.catalog.listForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := userCacheKey(userID)
	if cached, err := s.cache.Get([]byte(cacheKey)); err == nil {
		var exercises []gymplan.Exercise
		if err := json.Unmarshal(cached, &exercises); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return exercises, nil
		} else {
			log.Errorf("catalog: unmarshal cached exercises [%s]: %s", cacheKey, err)
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	exercises, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	exercisesJson, err := json.Marshal(exercises)
	if err != nil {
		log.Errorf("catalog: marshal exercises for cache [%s]: %s", cacheKey, err)
		return exercises, nil
	}
	if err := s.cache.Set([]byte(cacheKey), exercisesJson, s.cacheTTL); err != nil {
		log.Errorf("catalog: set exercises cache [%s]: %s", cacheKey, err)
	}

	return exercises, nil
}

func userCacheKey(userID *int) string {
	if userID == nil {
		return globalCacheKey
	}
	return fmt.Sprintf("exercises::user::%d", *userID)
}
