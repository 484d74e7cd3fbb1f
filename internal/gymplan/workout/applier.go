package workout

import (
	"context"

	"github.com/2beens/gymplan/internal/gymplan/progression"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=workout_test

type progressionApplier interface {
	Apply(ctx context.Context, workoutID int) (*progression.Result, error)
}
