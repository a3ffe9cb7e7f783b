package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnh1125/jumboboxd/internal/apperr"
	"github.com/nnh1125/jumboboxd/internal/auth"
	"github.com/nnh1125/jumboboxd/internal/logging"
	"github.com/nnh1125/jumboboxd/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDirectory struct {
	profiles map[string]auth.Profile
	err      error
}

func (f *fakeDirectory) LookupUser(_ context.Context, id string) (*auth.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return &p, nil
}

func newTestService(t *testing.T, dir *fakeDirectory) (*Service, *Store) {
	t.Helper()
	db := testutil.NewDB(t, &User{})
	store := NewStore(db)
	return NewService(store, dir, logging.Discard()), store
}

func TestServiceSync(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesThenUpdates", func(t *testing.T) {
		dir := &fakeDirectory{profiles: map[string]auth.Profile{
			"user_1": {Email: "a@example.com", Username: "alice"},
		}}
		svc, store := newTestService(t, dir)

		first, err := svc.Sync(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "user_1", first.ExternalID)
		assert.Equal(t, "a@example.com", first.Email)

		dir.profiles["user_1"] = auth.Profile{Email: "new@example.com", Username: "alice2", DisplayName: "Alice"}
		second, err := svc.Sync(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "new@example.com", second.Email)
		assert.Equal(t, "alice2", second.Username)
		assert.Equal(t, "Alice", second.DisplayName)

		var count int64
		require.NoError(t, store.db.Model(&User{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("MissingEmailTolerated", func(t *testing.T) {
		dir := &fakeDirectory{profiles: map[string]auth.Profile{"user_2": {Username: "bob"}}}
		svc, _ := newTestService(t, dir)

		u, err := svc.Sync(ctx, "user_2")
		require.NoError(t, err)
		assert.Empty(t, u.Email)
	})

	t.Run("UnknownIdentity", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDirectory{})
		_, err := svc.Sync(ctx, "user_missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("ProviderDown", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDirectory{err: errors.New("connection refused")})
		_, err := svc.Sync(ctx, "user_1")
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	})

	t.Run("EmptyID", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeDirectory{})
		_, err := svc.Sync(ctx, "  ")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestServiceGet(t *testing.T) {
	dir := &fakeDirectory{profiles: map[string]auth.Profile{"user_1": {Email: "a@example.com"}}}
	svc, _ := newTestService(t, dir)
	ctx := context.Background()

	_, err := svc.Get(ctx, "user_1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Sync(ctx, "user_1")
	require.NoError(t, err)

	u, err := svc.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

type headerVerifier struct{}

func (headerVerifier) Verify(_ context.Context, tok string) (*auth.Identity, error) {
	return &auth.Identity{Subject: tok}, nil
}

func newTestRouter(t *testing.T, dir *fakeDirectory) *gin.Engine {
	svc, _ := newTestService(t, dir)
	ctl := NewController(svc, logging.Discard())

	r := gin.New()
	g := r.Group("/api", auth.RequireAuth(headerVerifier{}, "", logging.Discard()))
	g.POST("/users", ctl.SyncUserHandler)
	g.GET("/me", ctl.MeHandler)
	return r
}

func TestControllerSync(t *testing.T) {
	dir := &fakeDirectory{profiles: map[string]auth.Profile{"user_1": {Email: "a@example.com"}}}
	r := newTestRouter(t, dir)

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodGet, "/api/me", "user_1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodPost, "/api/users", "user_1", `{"userId":"user_2"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(http.MethodPost, "/api/users", "user_1", `{"userId":"user_1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"externalId":"user_1"`)

	w = do(http.MethodPost, "/api/users", "user_1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(http.MethodGet, "/api/me", "user_1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"a@example.com"`)

	w = do(http.MethodPost, "/api/users", "user_unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(http.MethodPost, "/api/users", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServiceSyncWithoutDirectory(t *testing.T) {
	db := testutil.NewDB(t, &User{})
	svc := NewService(NewStore(db), nil, logging.Discard())

	_, err := svc.Sync(context.Background(), "user_1")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
