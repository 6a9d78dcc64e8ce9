package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dentallab/internal/core/apperror"
	appctx "dentallab/internal/core/context"
	"dentallab/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubValidator struct {
	user *appctx.UserContext
}

func (v stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad signature")
	}
	return v.user, nil
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(), Recovery())
	r.Use(mw...)
	return r
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler(t *testing.T) {
	r := newEngine()
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("order", "42"))
	})
	r.GET("/raw", func(c *gin.Context) {
		_ = c.Error(errors.New("connection refused"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := do(r, http.MethodGet, "/app", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, decode(t, w)["code"])

	w = do(r, http.MethodGet, "/raw", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "connection refused")

	w = do(r, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestAuthAndRoles(t *testing.T) {
	user := &appctx.UserContext{UserID: uuid.New(), OrgID: uuid.New(), Roles: []string{"TECHNICIAN"}}
	r := newEngine(Auth(stubValidator{user: user}))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetOrgID(c.Request.Context()).String())
	})
	r.GET("/admin", RequireRole("OWNER", "ADMIN"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/tech", RequireRole("ADMIN", "TECHNICIAN"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := do(r, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/me", "", map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	good := map[string]string{"Authorization": "Bearer good"}
	w = do(r, http.MethodGet, "/me", "", good)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.OrgID.String(), w.Body.String())

	w = do(r, http.MethodGet, "/admin", "", good)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, decode(t, w)["code"])

	w = do(r, http.MethodGet, "/tech", "", good)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

type finished struct {
	status int
	body   string
}

type memIdempotency struct {
	replay   *postgres.IdempotencyReplay
	err      error
	hashes   []string
	finished []finished
}

func (m *memIdempotency) AcquireKey(_ context.Context, _, _ uuid.UUID, _, _, hash string) (*postgres.IdempotencyReplay, error) {
	m.hashes = append(m.hashes, hash)
	return m.replay, m.err
}

func (m *memIdempotency) Finish(_ context.Context, _ uuid.UUID, _ string, status int, body []byte) error {
	m.finished = append(m.finished, finished{status: status, body: string(body)})
	return nil
}

func TestIdempotency(t *testing.T) {
	user := &appctx.UserContext{UserID: uuid.New(), OrgID: uuid.New()}
	store := &memIdempotency{}
	calls := 0

	r := newEngine(Auth(stubValidator{user: user}))
	r.POST("/orders", Idempotency(store), func(c *gin.Context) {
		calls++
		var in map[string]any
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(apperror.NewValidation("bad body"))
			return
		}
		c.JSON(http.StatusCreated, gin.H{"number": "000001"})
	})
	headers := map[string]string{"Authorization": "Bearer good", HeaderIdempotencyKey: "k1"}

	t.Run("first request runs and stores the response", func(t *testing.T) {
		w := do(r, http.MethodPost, "/orders", `{"a":1}`, headers)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, calls)
		require.Len(t, store.finished, 1)
		assert.Equal(t, http.StatusCreated, store.finished[0].status)
		assert.JSONEq(t, `{"number":"000001"}`, store.finished[0].body)
	})

	t.Run("errors are stored as rendered", func(t *testing.T) {
		w := do(r, http.MethodPost, "/orders", `not json`, headers)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, store.finished, 2)
		assert.Equal(t, http.StatusBadRequest, store.finished[1].status)
		assert.Contains(t, store.finished[1].body, apperror.CodeValidation)
		assert.NotEqual(t, store.hashes[0], store.hashes[1])
	})

	t.Run("replay skips the handler", func(t *testing.T) {
		store.replay = &postgres.IdempotencyReplay{StatusCode: http.StatusCreated, Body: []byte(`{"number":"000001"}`)}
		before := calls
		w := do(r, http.MethodPost, "/orders", `{"a":1}`, headers)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "true", w.Header().Get(HeaderIdempotentReplay))
		assert.JSONEq(t, `{"number":"000001"}`, w.Body.String())
		assert.Equal(t, before, calls)
	})

	t.Run("running duplicate is rejected", func(t *testing.T) {
		store.replay, store.err = nil, apperror.NewLocked("k1")
		w := do(r, http.MethodPost, "/orders", `{"a":1}`, headers)
		assert.Equal(t, apperror.CodeLocked, decode(t, w)["code"])
	})

	t.Run("no key passes through", func(t *testing.T) {
		store.err = nil
		before := len(store.hashes)
		w := do(r, http.MethodPost, "/orders", `{"a":1}`, map[string]string{"Authorization": "Bearer good"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Len(t, store.hashes, before)
	})
}
