package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/solvegate/solvegate/internal/engine"
)

type stubRemote struct {
	report        engine.ActivityReport
	activityCalls int32
}

func (r *stubRemote) FetchTodayActivity(ctx context.Context, username string) (engine.ActivityReport, error) {
	atomic.AddInt32(&r.activityCalls, 1)
	return r.report, nil
}

func (r *stubRemote) FetchDailyChallenge(ctx context.Context) (*engine.DailyChallenge, error) {
	return nil, nil
}

func newTestServer(t *testing.T, cfg ServerConfig, remote engine.RemoteClient) (*Server, *httptest.Server) {
	t.Helper()
	eng, err := engine.New(engine.Options{Remote: remote, DisableTimers: true})
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	server := NewServer(eng, cfg)
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return server, ts
}

func doJSON(t *testing.T, client *http.Client, method, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return string(data)
}

func TestHealthIsOpen(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{APIToken: "secret"}, nil)
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for /health without auth, got %d", resp.StatusCode)
	}
}

func TestBearerTokenGuardsAPIRoutes(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{APIToken: "secret"}, nil)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodGet, ts.URL+"/v1/state", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/v1/state", "", map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/v1/state", "", map[string]string{"Authorization": "Bearer secret"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", resp.StatusCode)
	}

	// WebSocket-style query parameter fallback.
	resp = doJSON(t, client, http.MethodGet, ts.URL+"/v1/state?token=secret", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", resp.StatusCode)
	}
}

func TestActivityIngestValidatesSchema(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{}, nil)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/activity", `{"slug":"two-sum","source":"network"}`, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for valid activity, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/v1/activity", `{"slug":"two-sum","bogus":true}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/v1/activity", `{"slug":42}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong type, got %d", resp.StatusCode)
	}
}

func TestEvaluateReturnsDecision(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{}, nil)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/policy/evaluate", `{"url":"https://news.example.com/","focused":true}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	// No account configured: inert, always allow.
	payload := readBody(t, resp)
	if !strings.Contains(payload, `"allow"`) {
		t.Fatalf("expected allow decision, got %s", payload)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	remote := &stubRemote{report: engine.ActivityReport{Count: 1, Slugs: []string{"a"}}}
	_, ts := newTestServer(t, ServerConfig{}, remote)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/settings", `{"username":"alice","dailyGoal":99}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range goal, got %d", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/v1/settings", `{"username":"alice","dailyGoal":2,"requireDaily":false}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for valid settings, got %d", resp.StatusCode)
	}
	if calls := atomic.LoadInt32(&remote.activityCalls); calls != 1 {
		t.Fatalf("expected settings change to reconcile immediately, got %d calls", calls)
	}

	payload := readBody(t, resp)
	if !strings.Contains(payload, `"username":"alice"`) || !strings.Contains(payload, `"solvesToday":1`) {
		t.Fatalf("unexpected settings response: %s", payload)
	}
}

func TestBypassEndpointReportsRefusal(t *testing.T) {
	remote := &stubRemote{}
	_, ts := newTestServer(t, ServerConfig{}, remote)
	client := ts.Client()

	doJSON(t, client, http.MethodPost, ts.URL+"/v1/settings", `{"username":"alice","dailyGoal":3}`, nil)

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/bypass", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payload := readBody(t, resp); !strings.Contains(payload, `"success":true`) {
		t.Fatalf("expected first bypass to succeed: %s", payload)
	}

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/v1/bypass", "", nil)
	if payload := readBody(t, resp); !strings.Contains(payload, "Already used today") {
		t.Fatalf("expected refusal reason: %s", payload)
	}
}

func TestSyncReportsUnconfiguredAccount(t *testing.T) {
	remote := &stubRemote{}
	_, ts := newTestServer(t, ServerConfig{}, remote)
	client := ts.Client()

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/v1/sync", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected structured result, got %d", resp.StatusCode)
	}
	if payload := readBody(t, resp); !strings.Contains(payload, "No account configured") {
		t.Fatalf("expected unconfigured reason: %s", payload)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{}, nil)
	resp := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/v1/unknown", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRateLimitEventuallyDenies(t *testing.T) {
	_, ts := newTestServer(t, ServerConfig{RateLimitPerMinute: 2}, nil)
	client := ts.Client()

	var sawDenial bool
	for i := 0; i < 10; i++ {
		resp := doJSON(t, client, http.MethodGet, ts.URL+"/v1/state", "", nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			sawDenial = true
			break
		}
	}
	if !sawDenial {
		t.Fatalf("expected the per-client limiter to deny a burst")
	}
}
