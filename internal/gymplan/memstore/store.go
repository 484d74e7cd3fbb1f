// Package memstore keeps the gymplan tables in memory. It implements the repo
// contracts of the plan, workout and progression packages and is meant for tests:
// a unit of work holds one lock and is rolled back by restoring a snapshot.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/gymplan/internal/db"
	"github.com/2beens/gymplan/internal/gymplan"
)

type state struct {
	nextID      int
	exercises   map[int]gymplan.Exercise
	programs    map[int]gymplan.Program
	weeks       map[int]gymplan.ProgramWeek
	days        map[int]gymplan.ProgramDay
	pdes        map[int]gymplan.ProgramDayExercise
	plannedSets map[int]gymplan.PlannedSet
	workouts    map[int]gymplan.Workout
	wexes       map[int]gymplan.WorkoutExercise
	workoutSets map[int]gymplan.WorkoutSet
}

func newState() *state {
	return &state{
		exercises:   make(map[int]gymplan.Exercise),
		programs:    make(map[int]gymplan.Program),
		weeks:       make(map[int]gymplan.ProgramWeek),
		days:        make(map[int]gymplan.ProgramDay),
		pdes:        make(map[int]gymplan.ProgramDayExercise),
		plannedSets: make(map[int]gymplan.PlannedSet),
		workouts:    make(map[int]gymplan.Workout),
		wexes:       make(map[int]gymplan.WorkoutExercise),
		workoutSets: make(map[int]gymplan.WorkoutSet),
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:      s.nextID,
		exercises:   cloneMap(s.exercises),
		programs:    cloneMap(s.programs),
		weeks:       cloneMap(s.weeks),
		days:        cloneMap(s.days),
		pdes:        cloneMap(s.pdes),
		plannedSets: cloneMap(s.plannedSets),
		workouts:    cloneMap(s.workouts),
		wexes:       cloneMap(s.wexes),
		workoutSets: cloneMap(s.workoutSets),
	}
}

func cloneMap[V any](m map[int]V) map[int]V {
	c := make(map[int]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (s *state) id() int {
	s.nextID++
	return s.nextID
}

type failure struct {
	skip int
	err  error
}

type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]failure
	now      func() time.Time
}

func New() *Store {
	return &Store{
		st:       newState(),
		failures: make(map[string]failure),
		now:      time.Now,
	}
}

// InTx runs fn under the store lock. Any error or panic from fn restores the
// state seen when the unit of work started.
func (s *Store) InTx(_ context.Context, fn func(q db.Querier) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(nil)
}

// FailNext makes the next call of the named repo method return err.
func (s *Store) FailNext(method string, err error) {
	s.FailAfter(method, 0, err)
}

// FailAfter lets the named repo method succeed skip times, then fails one call with err.
func (s *Store) FailAfter(method string, skip int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = failure{skip: skip, err: err}
}

func (s *Store) injected(method string) error {
	f, ok := s.failures[method]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		s.failures[method] = f
		return nil
	}
	delete(s.failures, method)
	return f.err
}

// Counts returns the number of rows per table.
func (s *Store) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"exercise":             len(s.st.exercises),
		"program":              len(s.st.programs),
		"program_week":         len(s.st.weeks),
		"program_day":          len(s.st.days),
		"program_day_exercise": len(s.st.pdes),
		"planned_set":          len(s.st.plannedSets),
		"workout":              len(s.st.workouts),
		"workout_exercise":     len(s.st.wexes),
		"workout_set":          len(s.st.workoutSets),
	}
}
