package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/form-intake/api/internal/config"
)

const testSecret = "test-secret"

func testConfig() config.Config {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return config.Config{
		Addr:                ":0",
		AllowedOrigins:      []string{"https://forms.example.com"},
		Timezone:            "UTC",
		ServerLog:           logger,
		Sinks:               []string{config.SinkKV},
		KVKeyPrefix:         "submission:",
		MaxUploadBytes:      1 << 20,
		UploadRatePerSecond: 1,
		UploadBurst:         1,
		JWTConfigs:          []config.JWTConfig{{Issuer: "form-intake-admin", Secret: []byte(testSecret)}},
		JWTAudience:         "form-intake",
	}
}

func newTestServer(t *testing.T, cfg config.Config) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(cfg, Clients{Redis: client}).Handler(), mr
}

func signToken(t *testing.T, secret, issuer, audience, subject string) string {
	t.Helper()
	claims := authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: "Operator",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func request(handler http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitWritesToKVAndAdminReadsBack(t *testing.T) {
	handler, mr := newTestServer(t, testConfig())

	rec := request(handler, http.MethodPost, "/api/submit",
		`{"id":"sub-1","services":["SEO"],"formData":{"companyName":"Acme","budget":5000}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Success","submissionId":"sub-1"}`, rec.Body.String())

	stored, err := mr.Get("submission:sub-1")
	require.NoError(t, err)
	assert.Contains(t, stored, `"companyName":"Acme"`)
	markdown, err := mr.Get("submission:sub-1:markdown")
	require.NoError(t, err)
	assert.Contains(t, markdown, "### Company Name\nAcme")

	token := signToken(t, testSecret, "form-intake-admin", "form-intake", "ops-1")
	auth := map[string]string{"Authorization": "Bearer " + token}

	rec = request(handler, http.MethodGet, "/admin/submissions/sub-1", "", auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"source":"kv"`)

	rec = request(handler, http.MethodGet, "/admin/submissions/sub-1/markdown", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# New Form Submission"))

	rec = request(handler, http.MethodGet, "/admin/failed-deliveries", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestSubmitFailsWhenKVIsDown(t *testing.T) {
	handler, mr := newTestServer(t, testConfig())
	mr.Close()

	rec := request(handler, http.MethodPost, "/api/submit", `{"id":"sub-1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Submission failed: kv: ")

	rec = request(handler, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestServer(t, testConfig())

	rec := request(handler, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}

func TestAdminRequiresValidToken(t *testing.T) {
	handler, _ := newTestServer(t, testConfig())

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, "other", "form-intake-admin", "form-intake", "ops-1"),
		"wrong issuer":   "Bearer " + signToken(t, testSecret, "someone-else", "form-intake", "ops-1"),
		"wrong audience": "Bearer " + signToken(t, testSecret, "form-intake-admin", "other", "ops-1"),
		"no subject":     "Bearer " + signToken(t, testSecret, "form-intake-admin", "form-intake", ""),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			headers := map[string]string{}
			if header != "" {
				headers["Authorization"] = header
			}
			rec := request(handler, http.MethodGet, "/admin/failed-deliveries", "", headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWTConfigs = nil
	handler, _ := newTestServer(t, cfg)

	rec := request(handler, http.MethodGet, "/admin/failed-deliveries", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	handler, _ := newTestServer(t, testConfig())

	rec := request(handler, http.MethodOptions, "/api/submit", "", map[string]string{"Origin": "https://forms.example.com"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://forms.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = request(handler, http.MethodOptions, "/api/submit", "", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadWithoutBlobStorage(t *testing.T) {
	handler, _ := newTestServer(t, testConfig())

	rec := request(handler, http.MethodPost, "/api/upload?filename=a.txt", "hello", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Configuration error")

	rec = request(handler, http.MethodPost, "/api/upload?filename=a.txt", "hello", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUploadUnlimitedWithoutRate(t *testing.T) {
	cfg := testConfig()
	cfg.UploadRatePerSecond = 0
	cfg.UploadBurst = 0
	handler, _ := newTestServer(t, cfg)

	for i := 0; i < 3; i++ {
		rec := request(handler, http.MethodPost, "/api/upload?filename=a.txt", "hello", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := newTestServer(t, testConfig())

	request(handler, http.MethodPost, "/api/submit", `{"id":"sub-1"}`, nil)
	rec := request(handler, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `intake_submissions_total{result="success",sink="kv"} 1`)
}
