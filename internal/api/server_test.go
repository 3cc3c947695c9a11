package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gpt2giga/gpt2giga/internal/auth/gigachat"
	"github.com/gpt2giga/gpt2giga/internal/client"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg.ApplyDefaults()
	gigaClient := client.NewGigaChatClient(cfg, gigachat.NewTokenManager(gigachat.NewGigaChatAuth(cfg)))
	return NewServer(cfg, gigaClient)
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, gjson.Get(w.Body.String(), "endpoints").Raw, "/v1/chat/completions")
}

func TestAuthMiddlewareNoKeysConfigured(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsMissingKey(t *testing.T) {
	s := newTestServer(t, &config.Config{APIKeys: []string{"sk-good"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsWrongKey(t *testing.T) {
	s := newTestServer(t, &config.Config{APIKeys: []string{"sk-good"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer sk-bad")
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareAcceptsKey(t *testing.T) {
	s := newTestServer(t, &config.Config{APIKeys: []string{"sk-good"}})

	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer sk-good") },
		func(r *http.Request) { r.Header.Set("Authorization", "sk-good") },
		func(r *http.Request) { r.URL.RawQuery = "key=sk-good" },
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/models", nil)
		set(req)
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &config.Config{APIKeys: []string{"sk-good"}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/v1/chat/completions", nil)
	s.engine.ServeHTTP(w, req)

	// Preflight requests carry no credentials and must not be rejected.
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpdateConfig(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	// Without keys the endpoint is open.
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	newCfg := &config.Config{APIKeys: []string{"sk-new"}}
	newCfg.ApplyDefaults()
	s.UpdateConfig(newCfg)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer sk-new")
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateConfigDuringRequests(t *testing.T) {
	s := newTestServer(t, &config.Config{})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				w := httptest.NewRecorder()
				s.engine.ServeHTTP(w, httptest.NewRequest("GET", "/v1/models", nil))
			}
		}()
	}

	// Reload repeatedly while requests are in flight; the race detector
	// flags any unsynchronized config read.
	for i := 0; i < 100; i++ {
		cfg := &config.Config{}
		cfg.ApplyDefaults()
		s.UpdateConfig(cfg)
	}

	close(stop)
	wg.Wait()
}
