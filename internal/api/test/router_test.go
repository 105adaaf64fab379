package test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/troikatech/agent-console/internal/api"
	"github.com/troikatech/agent-console/internal/api/handlers"
	"github.com/troikatech/agent-console/internal/tenant"
	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/millis"
)

// buildTestRouter wires the production router over the memory store. The
// platform client points nowhere and is never called here.
func buildTestRouter(cfg *env.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	h := handlers.NewHandler(handlers.Deps{
		Config:   cfg,
		Platform: millis.NewClient(millis.Config{BaseURL: "http://127.0.0.1:0", Token: "test"}, logger),
		Store:    tenant.NewMemoryStore(),
		Logger:   logger,
	})
	return api.NewRouter(cfg, h, nil, logger)
}

var expectedRoutes = []struct {
	method string
	path   string
}{
	{"GET", "/health"},
	{"GET", "/metrics"},
	{"GET", "/metrics/prometheus"},

	{"POST", "/api/webhook"},

	{"POST", "/api/create-agent"},
	{"POST", "/api/update-agent"},
	{"GET", "/api/get-agent"},
	{"GET", "/api/list-agents"},

	{"POST", "/api/create-knowledge-base"},
	{"POST", "/api/resync-knowledge-base/:id"},
	{"DELETE", "/api/delete-knowledge-base/:id"},
	{"GET", "/api/list-knowledge-bases"},

	{"POST", "/api/create-phone-number"},
	{"POST", "/api/update-phone-number"},
	{"DELETE", "/api/delete-phone-number/:phone_number"},
	{"GET", "/api/list-phone-numbers"},

	{"POST", "/api/make-outbound-call"},
	{"GET", "/api/list-voices"},
	{"POST", "/api/start-web-call"},
	{"POST", "/api/webrtc/offer"},
	{"POST", "/api/webrtc/ice-candidate"},

	{"GET", "/api/list-call-history"},
	{"GET", "/api/get-call"},
	{"GET", "/api/call-stats"},
}

func Test_Routes_Registered(t *testing.T) {
	r := buildTestRouter(&env.Config{})
	routes := r.Routes()

	registered := make(map[string]bool)
	for _, rt := range routes {
		registered[rt.Method+" "+rt.Path] = true
	}

	for _, expected := range expectedRoutes {
		key := expected.method + " " + expected.path
		if !registered[key] {
			t.Errorf("missing route: %s %s", expected.method, expected.path)
		}
	}
}

func Test_Routes_Count(t *testing.T) {
	r := buildTestRouter(&env.Config{})
	if got := len(r.Routes()); got != len(expectedRoutes) {
		t.Errorf("expected %d routes, got %d", len(expectedRoutes), got)
	}
}

func Test_Health_MemoryStore(t *testing.T) {
	r := buildTestRouter(&env.Config{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func Test_BearerAuth_GuardsAPIButNotWebhook(t *testing.T) {
	r := buildTestRouter(&env.Config{JWTSecret: "secret", JWTIssuer: "console"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/list-agents?user_id=u1&workspace_id=w1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("list-agents without token: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/webhook", nil))
	if w.Code == http.StatusUnauthorized {
		t.Error("webhook should not require a bearer token")
	}
}
