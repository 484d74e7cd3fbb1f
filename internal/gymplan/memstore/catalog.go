package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/2beens/gymplan/internal/gymplan"
)

// Catalog methods are called outside units of work and take the lock themselves.

func (s *Store) Add(_ context.Context, exercise gymplan.Exercise) (*gymplan.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exercise.IsGlobal == (exercise.OwnerUserID != nil) {
		return nil, gymplan.Invalid("ownership", "exercise must be either global or owned by a user")
	}
	for _, e := range s.st.exercises {
		if e.Name != exercise.Name {
			continue
		}
		if (e.IsGlobal && exercise.IsGlobal) ||
			(e.OwnerUserID != nil && exercise.OwnerUserID != nil && *e.OwnerUserID == *exercise.OwnerUserID) {
			return nil, gymplan.Conflict("exercise", "name", exercise.Name)
		}
	}

	exercise.ID = s.st.id()
	exercise.CreatedAt = s.now()
	s.st.exercises[exercise.ID] = exercise
	return &exercise, nil
}

func (s *Store) Get(_ context.Context, id int) (*gymplan.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.exercises[id]
	if !ok {
		return nil, gymplan.NotFound("exercise", id)
	}
	return &e, nil
}

func (s *Store) ListForUser(_ context.Context, userID *int) ([]gymplan.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exercises := make([]gymplan.Exercise, 0)
	for _, e := range s.st.exercises {
		if e.IsGlobal || (userID != nil && e.OwnerUserID != nil && *e.OwnerUserID == *userID) {
			exercises = append(exercises, e)
		}
	}
	slices.SortFunc(exercises, func(a, b gymplan.Exercise) int {
		if a.IsGlobal != b.IsGlobal {
			if a.IsGlobal {
				return -1
			}
			return 1
		}
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return exercises, nil
}

func (s *Store) FindByName(_ context.Context, userID int, name string) (*gymplan.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	var global *gymplan.Exercise
	for _, e := range s.st.exercises {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		if e.OwnerUserID != nil && *e.OwnerUserID == userID {
			return &e, nil
		}
		if e.IsGlobal && (global == nil || e.ID < global.ID) {
			global = &e
		}
	}
	if global == nil {
		return nil, gymplan.NotFound("exercise", "user", userID, "name", name)
	}
	return global, nil
}
