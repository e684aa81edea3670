package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(store UserStore) *gin.Engine {
	router := gin.New()
	router.Use(MaxBodySize(1024))
	NewUserHandlers(NewUserService(store, 0), zap.NewNop()).RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeUser(t *testing.T, w *httptest.ResponseRecorder) User {
	t.Helper()
	var u User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	return u
}

func decodeUsers(t *testing.T, w *httptest.ResponseRecorder) []User {
	t.Helper()
	var list []User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	return list
}

func TestCreateThenList(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	w := doRequest(t, router, http.MethodPost, "/users", `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	created := decodeUser(t, w)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.Name)
	assert.Equal(t, "Alice", *created.Name)

	w = doRequest(t, router, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeUsers(t, w)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "Alice", *list[0].Name)
}

func TestListEmptyStoreReturnsEmptyArray(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	w := doRequest(t, router, http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCreateWithoutName(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	for _, body := range []string{`{}`, `{"name":null}`, ``} {
		w := doRequest(t, router, http.MethodPost, "/users", body)
		require.Equal(t, http.StatusOK, w.Code, "body %q", body)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		assert.Contains(t, raw, "name")
		assert.Nil(t, raw["name"])
		assert.NotEmpty(t, raw["id"])
	}

	w := doRequest(t, router, http.MethodGet, "/users", "")
	assert.Len(t, decodeUsers(t, w), 3)
}

func TestCreateIsNotIdempotent(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	first := decodeUser(t, doRequest(t, router, http.MethodPost, "/users", `{"name":"Bob"}`))
	second := decodeUser(t, doRequest(t, router, http.MethodPost, "/users", `{"name":"Bob"}`))

	assert.NotEqual(t, first.ID, second.ID)

	list := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users", ""))
	assert.Len(t, list, 2)
}

func TestConcurrentCreates(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	const n = 10
	ids := make([]string, n)
	codes := make([]int, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"same"}`))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			codes[i] = w.Code

			var u User
			if json.Unmarshal(w.Body.Bytes(), &u) == nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.NotEmpty(t, ids[i])
		seen[ids[i]] = true
	}
	assert.Len(t, seen, n)

	list := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users", ""))
	require.Len(t, list, n)
	for _, u := range list {
		assert.True(t, seen[u.ID], "unexpected id %s", u.ID)
	}
}

func TestCreateCoercesScalarNames(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	tests := []struct {
		body string
		want string
	}{
		{`{"name":42}`, "42"},
		{`{"name":1.5}`, "1.5"},
		{`{"name":true}`, "true"},
		{`{"name":""}`, ""},
	}

	for _, tt := range tests {
		w := doRequest(t, router, http.MethodPost, "/users", tt.body)
		require.Equal(t, http.StatusOK, w.Code, tt.body)
		u := decodeUser(t, w)
		require.NotNil(t, u.Name, tt.body)
		assert.Equal(t, tt.want, *u.Name, tt.body)
	}
}

func TestCreateRejectsBadBodies(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	tests := []struct {
		name string
		body string
		code int
	}{
		{"ObjectName", `{"name":{"first":"A"}}`, http.StatusBadRequest},
		{"ArrayName", `{"name":["A"]}`, http.StatusBadRequest},
		{"MalformedJSON", `{"name":`, http.StatusBadRequest},
		{"NotAnObject", `"Alice"`, http.StatusBadRequest},
		{"TooLarge", `{"name":"` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost, "/users", tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	list := decodeUsers(t, doRequest(t, router, http.MethodGet, "/users", ""))
	assert.Empty(t, list)
}

func TestUndefinedRoutes(t *testing.T) {
	router := newTestRouter(NewMemoryStore())

	assert.Equal(t, http.StatusNotFound, doRequest(t, router, http.MethodGet, "/accounts", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, router, http.MethodDelete, "/users", "").Code)
}

type failingStore struct {
	err error
}

func (f *failingStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	return nil, f.err
}

func (f *failingStore) ListUsers(ctx context.Context) ([]*User, error) {
	return nil, f.err
}

func TestStoreFailuresMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"Unavailable", NewStorageConnectionError("insert", "users", errors.New("connection refused")), http.StatusServiceUnavailable},
		{"QueryFailed", NewStorageQueryError("insert", "users", errors.New("syntax error")), http.StatusInternalServerError},
		{"Unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&failingStore{err: tt.err})

			w := doRequest(t, router, http.MethodPost, "/users", `{"name":"Alice"}`)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), "error")

			w = doRequest(t, router, http.MethodGet, "/users", "")
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
