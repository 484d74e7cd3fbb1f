package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/gymplan/internal/gymplan"
	"github.com/2beens/gymplan/internal/gymplan/catalog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func intPtr(i int) *int {
	return &i
}

func TestService_CreateExercise_Ownership(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	// both global and owned
	_, err := s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		OwnerUserID: intPtr(3),
		Name:        "Bench Press",
		MuscleGroup: "chest",
		IsGlobal:    true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gymplan.ErrValidation)

	// neither
	_, err = s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		Name:        "Bench Press",
		MuscleGroup: "chest",
	})
	require.Error(t, err)
	var validationErr *gymplan.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "ownership", validationErr.Field)

	_, err = s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		Name:        "   ",
		MuscleGroup: "chest",
		IsGlobal:    true,
	})
	assert.ErrorIs(t, err, gymplan.ErrValidation)
}

func TestService_CreateExercise(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	now := time.Now()
	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, ex gymplan.Exercise) (*gymplan.Exercise, error) {
			assert.Equal(t, "Squat", ex.Name)
			assert.Equal(t, "legs", ex.MuscleGroup)
			assert.False(t, ex.IsGlobal)
			require.NotNil(t, ex.OwnerUserID)
			assert.Equal(t, 7, *ex.OwnerUserID)
			ex.ID = 11
			ex.CreatedAt = now
			return &ex, nil
		})

	added, err := s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		OwnerUserID: intPtr(7),
		Name:        " Squat ",
		MuscleGroup: "legs",
	})
	require.NoError(t, err)
	require.NotNil(t, added)
	assert.Equal(t, 11, added.ID)
	assert.Equal(t, now, added.CreatedAt)
}

func TestService_CreateExercise_Conflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		Return(nil, gymplan.Conflict("exercise", "name", "Squat"))

	_, err := s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		Name:        "Squat",
		MuscleGroup: "legs",
		IsGlobal:    true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gymplan.ErrConflict)
}

func TestService_ListForUser_Cached(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	userID := intPtr(5)
	listed := []gymplan.Exercise{
		{ID: 1, Name: "Bench Press", MuscleGroup: "chest", IsGlobal: true},
		{ID: 2, Name: "Bench Press", MuscleGroup: "chest", OwnerUserID: userID},
	}
	repoMock.EXPECT().
		ListForUser(gomock.Any(), userID).
		Return(listed, nil).
		Times(1)

	for i := 0; i < 3; i++ {
		exercises, err := s.ListForUser(context.Background(), userID)
		require.NoError(t, err)
		require.Len(t, exercises, 2)
		// same name in both scopes, no dedup
		assert.Equal(t, exercises[0].Name, exercises[1].Name)
		assert.True(t, exercises[0].IsGlobal)
		require.NotNil(t, exercises[1].OwnerUserID)
		assert.Equal(t, 5, *exercises[1].OwnerUserID)
	}
}

func TestService_ListForUser_InvalidatedOnCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	userID := intPtr(5)
	otherUserID := intPtr(6)
	squat := gymplan.Exercise{ID: 1, Name: "Squat", MuscleGroup: "legs", IsGlobal: true}
	curl := gymplan.Exercise{ID: 2, Name: "Curl", MuscleGroup: "arms", OwnerUserID: userID}

	gomock.InOrder(
		repoMock.EXPECT().ListForUser(gomock.Any(), userID).Return([]gymplan.Exercise{squat}, nil),
		repoMock.EXPECT().ListForUser(gomock.Any(), otherUserID).Return([]gymplan.Exercise{squat}, nil),
		repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Return(&curl, nil),
		repoMock.EXPECT().ListForUser(gomock.Any(), userID).Return([]gymplan.Exercise{squat, curl}, nil),
	)

	exercises, err := s.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, exercises, 1)
	exercises, err = s.ListForUser(context.Background(), otherUserID)
	require.NoError(t, err)
	assert.Len(t, exercises, 1)

	_, err = s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		OwnerUserID: userID,
		Name:        "Curl",
		MuscleGroup: "arms",
	})
	require.NoError(t, err)

	exercises, err = s.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, exercises, 2)

	// other user's list is still served from cache
	exercises, err = s.ListForUser(context.Background(), otherUserID)
	require.NoError(t, err)
	assert.Len(t, exercises, 1)
}

func TestService_ListForUser_GlobalCreateClearsAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	deadlift := gymplan.Exercise{ID: 3, Name: "Deadlift", MuscleGroup: "back", IsGlobal: true}
	repoMock.EXPECT().ListForUser(gomock.Any(), nil).Return([]gymplan.Exercise{}, nil)
	repoMock.EXPECT().Add(gomock.Any(), gomock.Any()).Return(&deadlift, nil)
	repoMock.EXPECT().ListForUser(gomock.Any(), nil).Return([]gymplan.Exercise{deadlift}, nil)

	exercises, err := s.ListForUser(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, exercises)

	_, err = s.CreateExercise(context.Background(), catalog.CreateExerciseParams{
		Name:        "Deadlift",
		MuscleGroup: "back",
		IsGlobal:    true,
	})
	require.NoError(t, err)

	exercises, err = s.ListForUser(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, "Deadlift", exercises[0].Name)
}

func TestService_ListForUser_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	repoMock.EXPECT().ListForUser(gomock.Any(), nil).Return(nil, errors.New("db down")).Times(2)

	for i := 0; i < 2; i++ {
		exercises, err := s.ListForUser(context.Background(), nil)
		require.Error(t, err)
		assert.Nil(t, exercises)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockexercisesRepo(ctrl)
	s := catalog.NewService(repoMock, 1, 60)

	repoMock.EXPECT().Get(gomock.Any(), 404).Return(nil, gymplan.NotFound("exercise", 404))

	exercise, err := s.Get(context.Background(), 404)
	require.Error(t, err)
	assert.Nil(t, exercise)
	assert.ErrorIs(t, err, gymplan.ErrNotFound)
}
