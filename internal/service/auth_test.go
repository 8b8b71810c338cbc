package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/service/servicetest"
)

func newTestAuth(t *testing.T) (*AuthService, *servicetest.Users, *servicetest.Clock) {
	t.Helper()
	users := servicetest.NewUsers()
	clock := servicetest.NewClock(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := NewAuthService("test-secret", "admin@tarot.local", "admin123", users)
	svc.now = clock.Now
	return svc, users, clock
}

func TestAuth_RegisterLoginVerify(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &domain.RegisterRequest{Email: "Seeker@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "seeker@example.com", reg.User.Email)
	assert.Equal(t, domain.RoleUser, reg.User.Role)

	_, err = svc.Register(ctx, &domain.RegisterRequest{Email: "seeker@example.com", Password: "secret1"})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)

	login, err := svc.Login(ctx, &domain.LoginRequest{Email: "seeker@example.com", Password: "secret1"})
	require.NoError(t, err)

	claims, err := svc.VerifyToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.Sub)
	assert.Equal(t, domain.RoleUser, claims.Role)

	_, err = svc.Login(ctx, &domain.LoginRequest{Email: "seeker@example.com", Password: "wrong"})
	appErr, ok = domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.Code)
}

func TestAuth_RegisterValidation(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	_, err := svc.Register(context.Background(), &domain.RegisterRequest{Email: "not-an-email", Password: "x"})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 422, appErr.Code)
}

func TestAuth_VerifyTokenRejectsForeignSecret(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	other := NewAuthService("other-secret", "", "", servicetest.NewUsers())

	resp, err := other.issue(&domain.User{ID: "u1", Email: "a@b.c", Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = svc.VerifyToken(resp.Token)
	assert.Error(t, err)
}

func TestAuth_SeedAdminIsIdempotent(t *testing.T) {
	svc, users, _ := newTestAuth(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx))
	require.NoError(t, svc.SeedAdmin(ctx))

	all, _ := users.ListAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, domain.RoleAdmin, all[0].Role)
}

func TestAuth_HydrateExpiresLapsedPremium(t *testing.T) {
	svc, users, clock := newTestAuth(t)
	ctx := context.Background()

	users.Put(&domain.User{
		ID:            "u1",
		Email:         "a@b.c",
		Role:          domain.RoleUser,
		IsPremium:     true,
		PremiumExpiry: ptr(clock.Now().Add(time.Hour)),
	})

	sess, err := svc.Hydrate(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sess.IsPremium)
	assert.Equal(t, 0, users.Expires())

	clock.Advance(2 * time.Hour)

	sess, err = svc.Hydrate(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, sess.IsPremium)
	assert.False(t, users.Get("u1").IsPremium, "correction must be persisted")
	assert.Equal(t, 1, users.Expires())

	// Already corrected: no second write.
	_, err = svc.Hydrate(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, users.Expires())
}

func TestAuth_HydrateMissingUser(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	_, err := svc.Hydrate(context.Background(), "ghost")
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 401, appErr.Code)
}

func TestAuth_LoginWithGoogle(t *testing.T) {
	svc, users, _ := newTestAuth(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, &domain.RegisterRequest{Email: "linked@example.com", Password: "secret1"})
	require.NoError(t, err)

	// Existing email gets linked.
	resp, err := svc.LoginWithGoogle(ctx, "sub-1", "linked@example.com")
	require.NoError(t, err)
	linked := users.Get(resp.User.ID)
	require.NotNil(t, linked.GoogleSub)
	assert.Equal(t, "sub-1", *linked.GoogleSub)

	// Same subject resolves to the same account.
	again, err := svc.LoginWithGoogle(ctx, "sub-1", "changed@example.com")
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)

	// Unknown identity creates a password-less account.
	fresh, err := svc.LoginWithGoogle(ctx, "sub-2", "new@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, resp.User.ID, fresh.User.ID)
	assert.Nil(t, users.Get(fresh.User.ID).Password)

	_, err = svc.Login(ctx, &domain.LoginRequest{Email: "new@example.com", Password: "anything"})
	assert.Error(t, err)
}

func TestAuth_UserAdmin(t *testing.T) {
	svc, _, _ := newTestAuth(t)
	ctx := context.Background()
	require.NoError(t, svc.SeedAdmin(ctx))

	created, err := svc.CreateUser(ctx, &domain.CreateUserRequest{Email: "u@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, created.Role)

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	admin, err := svc.users.FindByEmail(ctx, "admin@tarot.local")
	require.NoError(t, err)
	err = svc.DeleteUser(ctx, admin.ID)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 400, appErr.Code)

	require.NoError(t, svc.DeleteUser(ctx, created.ID))
	err = svc.DeleteUser(ctx, created.ID)
	appErr, ok = domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 404, appErr.Code)
}
