package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwise_backend/internal/models"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/pkg/apperrors"
)

func TestAuth_RegisterProvisionsFreeSubscription(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := repositories.NewSubscriptionRepository()
	svc := NewAuthService(repo)

	result, err := svc.Register(context.Background(), db, "Ada@Example.com", "supersecret", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "ada@example.com", result.User.Email, "email is normalized")
	assert.Equal(t, models.UserRoleUser, result.User.Role)

	sub, err := repo.FindByUserID(db, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, sub.Tier)
	assert.Equal(t, 0, sub.Consumed)
}

func TestAuth_RegisterDuplicateEmail(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewAuthService(repositories.NewSubscriptionRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, db, "ada@example.com", "supersecret", "Ada")
	require.NoError(t, err)

	_, err = svc.Register(ctx, db, "ADA@example.com", "othersecret", "Imposter")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr))
	assert.Equal(t, apperrors.CodeAlreadyExists, appErr.Code)
}

func TestAuth_LoginRoundTrip(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewAuthService(repositories.NewSubscriptionRepository())
	ctx := context.Background()

	registered, err := svc.Register(ctx, db, "ada@example.com", "supersecret", "Ada")
	require.NoError(t, err)

	logged, err := svc.Login(ctx, db, "ada@example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, logged.User.ID)
	assert.NotEmpty(t, logged.Token)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewAuthService(repositories.NewSubscriptionRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, db, "ada@example.com", "supersecret", "Ada")
	require.NoError(t, err)

	_, err = svc.Login(ctx, db, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, db, "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}
