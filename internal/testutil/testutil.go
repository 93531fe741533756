// Package testutil builds a fully wired router on the in-memory store for HTTP tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pcba-mpi-api-server/internal/api/routes"
	"pcba-mpi-api-server/internal/auth"
	"pcba-mpi-api-server/internal/cache"
	"pcba-mpi-api-server/internal/logger"
	"pcba-mpi-api-server/internal/service"
	"pcba-mpi-api-server/internal/socket"
	"pcba-mpi-api-server/internal/store/memstore"
)

const (
	JWTSecret = "pcba-mpi-test-secret"
	AdminKey  = "test-admin-key"
	Password  = "password123"
)

// TestEnv holds a router and the components behind it.
type TestEnv struct {
	DB          *memstore.DB
	Router      *gin.Engine
	Tokens      *auth.TokenManager
	Credentials *service.CredentialService
	Hub         *socket.Hub
	Images      *FakeImages
	T           *testing.T
}

// NewTestEnv wires every service on a fresh memstore with a nop logger.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	db := memstore.New()
	tokens := auth.NewTokenManager(JWTSecret, time.Hour)
	hub := socket.NewHub(log)
	images := &FakeImages{}
	credentials := service.NewCredentialService(db, tokens, AdminKey, log)
	alloc := service.NewAllocator(db)

	router := routes.SetupRouter(routes.Deps{
		DB:          db,
		Tokens:      tokens,
		Credentials: credentials,
		Registries:  service.NewRegistries(db, cache.NewMemory(), log),
		Allocator:   alloc,
		MPIs:        service.NewMPIService(db, alloc, images, hub, log),
		Hub:         hub,
		Log:         log,
	})
	t.Cleanup(hub.CloseAll)

	return &TestEnv{
		DB:          db,
		Router:      router,
		Tokens:      tokens,
		Credentials: credentials,
		Hub:         hub,
		Images:      images,
		T:           t,
	}
}

// SignupEngineer registers an engineer through the API and returns its token and id.
func (e *TestEnv) SignupEngineer(email, fullName string) (token, id string) {
	e.T.Helper()
	w := DoRequest(e.Router, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": Password,
	}, "")
	if w.Code != http.StatusCreated {
		e.T.Fatalf("engineer signup failed: %d %s", w.Code, w.Body.String())
	}
	return authFields(e.T, w)
}

// SignupAdmin registers an admin through the API and returns its token and id.
func (e *TestEnv) SignupAdmin(email, fullName string) (token, id string) {
	e.T.Helper()
	w := DoRequest(e.Router, http.MethodPost, "/api/v1/auth/admin/signup", map[string]string{
		"fullName": fullName,
		"email":    email,
		"password": Password,
		"adminKey": AdminKey,
	}, "")
	if w.Code != http.StatusCreated {
		e.T.Fatalf("admin signup failed: %d %s", w.Code, w.Body.String())
	}
	return authFields(e.T, w)
}

func authFields(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return res.Token, res.User.ID
}

// GenerateTestToken signs a token with the test secret.
func GenerateTestToken(subjectID, email, role, fullName string, ttl time.Duration) string {
	token, _ := auth.NewTokenManager(JWTSecret, ttl).Generate(subjectID, email, role, fullName)
	return token
}

// DoRequest executes a JSON request against the router.
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse decodes a JSON object body.
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// ParseList decodes a JSON array body.
func ParseList(w *httptest.ResponseRecorder) []map[string]interface{} {
	var result []map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// FakeImages records uploads and returns a predictable URL.
type FakeImages struct {
	mu   sync.Mutex
	Keys []string
}

func (f *FakeImages) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Keys = append(f.Keys, key)
	return "https://cdn.test/" + key, nil
}
