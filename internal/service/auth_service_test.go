package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfusion/accounts/internal/domain"
	"github.com/modfusion/accounts/internal/kv/memory"
	"github.com/modfusion/accounts/internal/metrics"
	"github.com/modfusion/accounts/internal/store"
)

const (
	adminEmail    = "admin@modfusion.com"
	adminPassword = "admin123"
)

func newTestService(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()
	st := store.New(memory.NewStore(), store.DefaultSeed(), zerolog.Nop())
	svc := NewAuthService(st, metrics.New(), zerolog.Nop())
	require.NoError(t, svc.Init(context.Background()))
	return svc, st
}

func registerJane(t *testing.T, svc *AuthService) {
	t.Helper()
	res := svc.Register(context.Background(), RegisterInput{
		Email:           "a@b.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.True(t, res.Success, "registration failed: %s", res.Error)
}

func TestInitStartsAnonymous(t *testing.T) {
	svc, _ := newTestService(t)

	assert.Equal(t, StateAnonymous, svc.State())
	assert.False(t, svc.Loading())
	assert.False(t, svc.IsAuthenticated(context.Background()))
	assert.False(t, svc.IsAdmin(context.Background()))
}

func TestInitResumesPersistedSession(t *testing.T) {
	ctx := context.Background()
	kvs := memory.NewStore()

	st := store.New(kvs, store.DefaultSeed(), zerolog.Nop())
	first := NewAuthService(st, nil, zerolog.Nop())
	require.NoError(t, first.Init(ctx))
	require.True(t, first.Login(ctx, adminEmail, adminPassword).Success)

	// A new service over the same records resolves the persisted session.
	st2 := store.New(kvs, store.DefaultSeed(), zerolog.Nop())
	second := NewAuthService(st2, nil, zerolog.Nop())
	require.NoError(t, second.Init(ctx))

	assert.Equal(t, StateAuthenticated, second.State())
	assert.True(t, second.IsAuthenticated(ctx))
}

func TestRegisterAutoLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	registerJane(t, svc)

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", session.Email)
	assert.Equal(t, domain.RoleUser, session.Role)
	assert.Equal(t, StateAuthenticated, svc.State())
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()

	base := RegisterInput{
		Email:           "a@b.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	}

	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr string
	}{
		{"missing email", func(in *RegisterInput) { in.Email = "" }, msgMissingFields},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "  " }, msgMissingFields},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, msgMissingFields},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, msgInvalidEmail},
		{"short password", func(in *RegisterInput) { in.Password = "abc"; in.ConfirmPassword = "abc" }, msgPasswordTooShort},
		{"mismatch", func(in *RegisterInput) { in.ConfirmPassword = "different" }, msgPasswordMismatch},
		{"bad name", func(in *RegisterInput) { in.FirstName = "Jane42" }, msgInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newTestService(t)
			in := base
			tt.mutate(&in)

			res := svc.Register(ctx, in)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantErr, res.Error)
			assert.Equal(t, 1, st.Count(ctx), "validation failure must not write")
		})
	}
}

func TestRegisterDuplicateEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	registerJane(t, svc)
	before := st.Count(ctx)

	res := svc.Register(ctx, RegisterInput{
		Email:           "A@B.com",
		FirstName:       "Other",
		LastName:        "Person",
		Password:        "secret2",
		ConfirmPassword: "secret2",
	})
	assert.False(t, res.Success)
	assert.Equal(t, msgEmailTaken, res.Error)
	assert.Equal(t, before, st.Count(ctx))
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res := svc.Login(ctx, adminEmail, adminPassword)
	require.True(t, res.Success)

	assert.Equal(t, StateAuthenticated, svc.State())
	assert.True(t, svc.IsAuthenticated(ctx))
	assert.True(t, svc.IsAdmin(ctx))
}

func TestLoginValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res := svc.Login(ctx, "", "secret1")
	assert.Equal(t, msgMissingCredentials, res.Error)

	res = svc.Login(ctx, "a@b.com", "")
	assert.Equal(t, msgMissingCredentials, res.Error)

	res = svc.Login(ctx, "not-an-email", "secret1")
	assert.Equal(t, msgInvalidEmail, res.Error)
}

func TestFailedLoginNeverRevealsField(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc)

	wrongPassword := svc.Login(ctx, "a@b.com", "wrong")
	unknownEmail := svc.Login(ctx, "nobody@b.com", "secret1")

	assert.Equal(t, msgInvalidCredentials, wrongPassword.Error)
	assert.Equal(t, msgInvalidCredentials, unknownEmail.Error)
}

func TestFailedLoginPreservesSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc)

	res := svc.Login(ctx, "a@b.com", "wrong")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	// The session from registration is untouched.
	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", session.Email)
	assert.Equal(t, StateAuthenticated, svc.State())
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.True(t, svc.Login(ctx, adminEmail, adminPassword).Success)

	require.NoError(t, svc.Logout(ctx))
	assert.Equal(t, StateAnonymous, svc.State())
	assert.False(t, svc.IsAuthenticated(ctx))

	// Logging out again changes nothing and is not an error.
	require.NoError(t, svc.Logout(ctx))
	assert.Equal(t, StateAnonymous, svc.State())
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	name := "Janet"
	res := svc.UpdateProfile(ctx, ProfileUpdate{FirstName: &name})
	assert.False(t, res.Success)
	assert.Equal(t, msgNoSession, res.Error)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc)

	name := "Janet"
	avatar := "https://example.com/a.png"
	res := svc.UpdateProfile(ctx, ProfileUpdate{FirstName: &name, Avatar: &avatar})
	require.True(t, res.Success, res.Error)

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Janet", session.FirstName)
	assert.Equal(t, avatar, session.Avatar)
}

func TestUpdateProfileValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc)

	bad := "not-an-email"
	res := svc.UpdateProfile(ctx, ProfileUpdate{Email: &bad})
	assert.Equal(t, msgInvalidEmail, res.Error)

	badName := "Janet9"
	res = svc.UpdateProfile(ctx, ProfileUpdate{FirstName: &badName})
	assert.Equal(t, msgInvalidName, res.Error)

	short := "abc"
	res = svc.UpdateProfile(ctx, ProfileUpdate{Password: &short})
	assert.Equal(t, msgPasswordTooShort, res.Error)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc)

	taken := "Admin@ModFusion.com"
	res := svc.UpdateProfile(ctx, ProfileUpdate{Email: &taken})
	assert.False(t, res.Success)
	assert.Equal(t, msgEmailTaken, res.Error)
}

func TestUpdateProfileProtectedAdminEmail(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	require.True(t, svc.Login(ctx, adminEmail, adminPassword).Success)

	renamed := "other@modfusion.com"
	res := svc.UpdateProfile(ctx, ProfileUpdate{Email: &renamed})
	assert.False(t, res.Success)
	assert.Equal(t, msgProtectedEmail, res.Error)

	// The protected identity is untouched.
	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, session.Email)
	assert.True(t, st.IsProtectedAdmin(session.ID))

	// Other profile fields remain editable.
	name := "Root"
	res = svc.UpdateProfile(ctx, ProfileUpdate{FirstName: &name})
	require.True(t, res.Success, res.Error)
}

func TestAdminOperationsAreGated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	registerJane(t, svc) // signed in as a regular user

	_, err := svc.ListAccounts(ctx)
	assert.ErrorIs(t, err, ErrForbidden)

	res := svc.PromoteAccount(ctx, "some-id")
	assert.Equal(t, ErrForbidden.Error(), res.Error)

	res = svc.DeleteAccount(ctx, "some-id")
	assert.Equal(t, ErrForbidden.Error(), res.Error)

	res = svc.ResetDirectory(ctx)
	assert.Equal(t, ErrForbidden.Error(), res.Error)
}

func TestProtectedAdminFailuresAreVisible(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	require.True(t, svc.Login(ctx, adminEmail, adminPassword).Success)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	adminID := accounts[0].ID
	require.True(t, st.IsProtectedAdmin(adminID))

	res := svc.DeleteAccount(ctx, adminID)
	assert.False(t, res.Success)
	assert.Equal(t, msgProtectedDelete, res.Error)

	res = svc.DemoteAccount(ctx, adminID)
	assert.False(t, res.Success)
	assert.Equal(t, msgProtectedDemote, res.Error)

	// Directory is untouched.
	assert.Equal(t, 1, st.Count(ctx))
	assert.True(t, svc.IsAdmin(ctx))
}

func TestPromoteAndDemoteViaService(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	user, err := st.Create(ctx, "a@b.com", "Jane", "Doe", "secret1")
	require.NoError(t, err)

	require.True(t, svc.Login(ctx, adminEmail, adminPassword).Success)

	res := svc.PromoteAccount(ctx, user.ID)
	require.True(t, res.Success, res.Error)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, findRole(accounts, user.ID))

	res = svc.DemoteAccount(ctx, user.ID)
	require.True(t, res.Success, res.Error)

	accounts, err = svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, findRole(accounts, user.ID))
}

func TestDeletedSessionFlipsToAnonymous(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	registerJane(t, svc)
	require.Equal(t, StateAuthenticated, svc.State())

	session, err := svc.CurrentSession(ctx)
	require.NoError(t, err)

	// The account disappears underneath the session.
	deleted, err := st.Delete(ctx, session.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	assert.False(t, svc.IsAuthenticated(ctx), "authentication must flip without an explicit logout")
	assert.Equal(t, StateAnonymous, svc.State())
}

func TestResetDirectoryViaService(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	_, err := st.Create(ctx, "a@b.com", "Jane", "Doe", "secret1")
	require.NoError(t, err)

	require.True(t, svc.Login(ctx, adminEmail, adminPassword).Success)

	res := svc.ResetDirectory(ctx)
	require.True(t, res.Success, res.Error)

	assert.Equal(t, 1, st.Count(ctx))
	assert.Equal(t, StateAnonymous, svc.State())
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestNilMetricsAreSafe(t *testing.T) {
	ctx := context.Background()
	st := store.New(memory.NewStore(), store.DefaultSeed(), zerolog.Nop())
	svc := NewAuthService(st, nil, zerolog.Nop())
	require.NoError(t, svc.Init(ctx))

	registerJane(t, svc)
	assert.True(t, svc.Login(ctx, "a@b.com", "secret1").Success)
}

func findRole(accounts []*domain.Account, id string) domain.Role {
	for _, a := range accounts {
		if a.ID == id {
			return a.Role
		}
	}
	return ""
}
