package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modfusion/accounts/internal/kv"
	"github.com/modfusion/accounts/internal/kv/memory"
	"github.com/modfusion/accounts/internal/service"
	"github.com/modfusion/accounts/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	st := store.New(memory.NewStore(), store.DefaultSeed(), zerolog.Nop())
	auth := service.NewAuthService(st, nil, zerolog.Nop())
	require.NoError(t, auth.Init(context.Background()))

	return NewRouter(RouterConfig{
		AuthHandler:  NewAuthHandler(auth, zerolog.Nop()),
		AdminHandler: NewAdminHandler(auth, zerolog.Nop()),
		Logger:       zerolog.Nop(),
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestSessionAnonymous(t *testing.T) {
	h := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Authenticated)
	assert.False(t, resp.IsAdmin)
	assert.Equal(t, "anonymous", resp.State)
	assert.Nil(t, resp.Account)
}

func TestLoginEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/login", loginRequest{
		Email:    "admin@modfusion.com",
		Password: "admin123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultResponse
	decode(t, rec, &resp)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Account)
	assert.Equal(t, "admin@modfusion.com", resp.Account.Email)
	assert.Equal(t, "admin", resp.Account.Role)

	// The stored password must never cross the façade.
	assert.NotContains(t, rec.Body.String(), "admin123")
	assert.NotContains(t, rec.Body.String(), `"password"`)
}

func TestLoginFailure(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/login", loginRequest{
		Email:    "admin@modfusion.com",
		Password: "wrong",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid credentials", resp.Error)
	assert.Nil(t, resp.Account)
}

// sessionReadFaultStore fails every read of the session record while leaving
// the directory record alone.
type sessionReadFaultStore struct {
	kv.Store
}

func (s *sessionReadFaultStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == store.SessionKey {
		return nil, errors.New("disk read failed")
	}
	return s.Store.Get(ctx, key)
}

func TestLoginSurvivesSessionReadFault(t *testing.T) {
	st := store.New(&sessionReadFaultStore{Store: memory.NewStore()}, store.DefaultSeed(), zerolog.Nop())
	auth := service.NewAuthService(st, nil, zerolog.Nop())
	require.NoError(t, auth.Init(context.Background()))

	h := NewRouter(RouterConfig{
		AuthHandler:  NewAuthHandler(auth, zerolog.Nop()),
		AdminHandler: NewAdminHandler(auth, zerolog.Nop()),
		Logger:       zerolog.Nop(),
	})

	rec := doJSON(t, h, http.MethodPost, "/api/login", loginRequest{
		Email:    "admin@modfusion.com",
		Password: "admin123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The credentials were accepted; the unreadable session record degrades
	// to an absent account instead of breaking the response.
	var resp resultResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Account)
}

func TestLoginBadBody(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/register", registerRequest{
		Email:           "a@b.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp resultResponse
	decode(t, rec, &resp)
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Account)
	assert.Equal(t, "a@b.com", resp.Account.Email)
	assert.Equal(t, "user", resp.Account.Role)

	// Auto-login after registration.
	rec = doJSON(t, h, http.MethodGet, "/api/session", nil)
	var session sessionResponse
	decode(t, rec, &session)
	assert.True(t, session.Authenticated)
	assert.Equal(t, "a@b.com", session.Account.Email)
}

func TestRegisterValidationFailure(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/api/register", registerRequest{
		Email:           "a@b.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "abc",
		ConfirmPassword: "abc",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "password must be at least 6 characters", resp.Error)
}

func TestLogoutEndpoint(t *testing.T) {
	h := newTestRouter(t)

	doJSON(t, h, http.MethodPost, "/api/login", loginRequest{
		Email:    "admin@modfusion.com",
		Password: "admin123",
	})

	rec := doJSON(t, h, http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/session", nil)
	var session sessionResponse
	decode(t, rec, &session)
	assert.False(t, session.Authenticated)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	h := newTestRouter(t)

	doJSON(t, h, http.MethodPost, "/api/register", registerRequest{
		Email:           "a@b.com",
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})

	first := "Janet"
	rec := doJSON(t, h, http.MethodPatch, "/api/profile", profileRequest{FirstName: &first})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resultResponse
	decode(t, rec, &resp)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Janet", resp.Account.FirstName)
}

func TestAdminEndpointsForbiddenWhenAnonymous(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/reset", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminFlow(t *testing.T) {
	h := newTestRouter(t)

	doJSON(t, h, http.MethodPost, "/api/login", loginRequest{
		Email:    "admin@modfusion.com",
		Password: "admin123",
	})

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users usersResponse
	decode(t, rec, &users)
	require.Len(t, users.Users, 1)
	adminID := users.Users[0].ID

	// The protected admin cannot be deleted, and the failure is visible.
	rec = doJSON(t, h, http.MethodDelete, "/api/users/"+adminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp resultResponse
	decode(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "the protected admin account cannot be deleted", resp.Error)

	rec = doJSON(t, h, http.MethodPost, "/api/users/no-such-id/promote", nil)
	decode(t, rec, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "account not found", resp.Error)
}
