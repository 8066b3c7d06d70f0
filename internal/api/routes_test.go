package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/adapters"
	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/internal/auth"
	"github.com/satriahrh/fixit/server/internal/websocket"
)

type fakePipeline struct {
	resp *entities.TroubleshootResponse
	err  error
	got  entities.AnalysisRequest
}

func (f *fakePipeline) Run(ctx context.Context, req entities.AnalysisRequest) (*entities.TroubleshootResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	resp.RequestID = req.RequestID
	if resp.RequestID == "" {
		resp.RequestID = "generated-id"
	}
	return &resp, nil
}

type fakeAnalyzer struct {
	validation entities.ValidationResult
	device     entities.DeviceProfile
	detected   bool
}

func (f *fakeAnalyzer) ValidateImage(ctx context.Context, img *entities.ImagePart, query string) entities.ValidationResult {
	return f.validation
}

func (f *fakeAnalyzer) DetectDevice(ctx context.Context, img *entities.ImagePart, query string) entities.DeviceProfile {
	f.detected = true
	return f.device
}

type fakeImages struct{}

func (fakeImages) Decode(encoded string) (*entities.ImagePart, error) {
	if encoded == "broken" {
		return nil, fmt.Errorf("%w: not an image", domain.ErrInvalidImage)
	}
	return &entities.ImagePart{Data: []byte(encoded), MIMEType: "image/jpeg", Width: 640, Height: 480}, nil
}

type fakeGateway struct {
	breakerOpen bool
	resets      int
}

func (f *fakeGateway) Invoke(ctx context.Context, req entities.ModelRequest) (*entities.ModelResult, error) {
	return nil, domain.ErrUpstream
}

func (f *fakeGateway) InvokeGrounded(ctx context.Context, req entities.ModelRequest) (*entities.GroundingResult, error) {
	return nil, domain.ErrUpstream
}

func (f *fakeGateway) QuotaStatus() entities.QuotaStatus {
	status := "ok"
	if f.breakerOpen {
		status = "quota_exhausted"
	}
	return entities.QuotaStatus{CircuitBreakerActive: f.breakerOpen, Status: status}
}

func (f *fakeGateway) ResetBreaker() {
	f.resets++
	f.breakerOpen = false
}

func (f *fakeGateway) BreakerOpen() bool { return f.breakerOpen }

type testServer struct {
	echo     *echo.Echo
	pipeline *fakePipeline
	analyzer *fakeAnalyzer
	gateway  *fakeGateway
	log      *adapters.MemoryAnalysisLog
	issuer   *auth.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	issuer, err := auth.NewIssuer("test-admin", "secret", time.Minute)
	require.NoError(t, err)

	ts := &testServer{
		echo: echo.New(),
		pipeline: &fakePipeline{resp: &entities.TroubleshootResponse{
			AnswerType: entities.AnswerTroubleshootSteps,
			Status:     entities.StatusSuccess,
		}},
		analyzer: &fakeAnalyzer{},
		gateway:  &fakeGateway{},
		log:      adapters.NewMemoryAnalysisLog(10),
		issuer:   issuer,
	}
	InitRoutes(ts.echo, Dependencies{
		Pipeline: ts.pipeline,
		Analyzer: ts.analyzer,
		Images:   fakeImages{},
		Gateway:  ts.gateway,
		Log:      ts.log,
		Issuer:   issuer,
		Hub:      websocket.NewHub(time.Minute, logger),
	}, logger)
	return ts
}

func (ts *testServer) form(method, path string, values url.Values, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) json(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.form(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","version":"0.3.0","pipeline":"enhanced-gate-based"}`, rec.Body.String())
}

func TestTroubleshoot_Form(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.form(http.MethodPost, "/api/troubleshoot", url.Values{
		"image_base64": {"aW1n"},
		"query":        {"  how do I fix slow wifi "},
		"device_hint":  {"router"},
		"image_width":  {"1000"},
		"image_height": {"800"},
	}, http.Header{"X-Request-Id": {"req-header"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-header", rec.Header().Get(echo.HeaderXRequestID))
	body := decode(t, rec)
	assert.Equal(t, "troubleshoot_steps", body["answer_type"])
	assert.Equal(t, "req-header", body["request_id"])

	got := ts.pipeline.got
	assert.Equal(t, "how do I fix slow wifi", got.Query)
	assert.Equal(t, "router", got.DeviceHint)
	assert.Equal(t, 1000, got.ImageWidth)
	assert.Equal(t, 800, got.ImageHeight)
}

func TestTroubleshoot_JSONWithRequestID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.json(http.MethodPost, "/api/troubleshoot",
		`{"image_base64": "aW1n", "query": "what is this", "request_id": "req-body"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-body", ts.pipeline.got.RequestID)
	assert.Equal(t, "req-body", rec.Header().Get(echo.HeaderXRequestID))
}

func TestTroubleshoot_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "missing image", body: `{"query": "slow wifi"}`, wantCode: http.StatusBadRequest, wantErr: "missing_fields"},
		{name: "blank query", body: `{"image_base64": "aW1n", "query": "  "}`, wantCode: http.StatusBadRequest, wantErr: "missing_fields"},
		{name: "malformed json", body: `{"image_base64":`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{
			name:     "undecodable image",
			body:     `{"image_base64": "aW1n", "query": "slow wifi"}`,
			err:      fmt.Errorf("%w: zero-sized image", domain.ErrInvalidImage),
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.pipeline.err = tt.err
			rec := ts.json(http.MethodPost, "/api/troubleshoot", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode(t, rec)["error"])
		})
	}
}

func TestTroubleshoot_UnexpectedFailureReturnsErrorDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.err = fmt.Errorf("failed to encode image: %w", errors.New("jpeg: encoder failure"))

	rec := ts.json(http.MethodPost, "/api/troubleshoot",
		`{"image_base64": "aW1n", "query": "slow wifi", "request_id": "req-fail"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-fail", rec.Header().Get(echo.HeaderXRequestID))
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "req-fail", body["request_id"])
	assert.NotEmpty(t, body["message"])
	assert.NotEmpty(t, body["audio_instructions"])
	assert.Nil(t, body["error"])
}

func TestValidateImage(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.validation = entities.ValidationResult{IsValid: true, Category: "electronic_device", Confidence: 0.9}

	rec := ts.form(http.MethodPost, "/api/validate-image", url.Values{"image_base64": {"aW1n"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["is_valid"])
	assert.Equal(t, "electronic_device", body["image_category"])

	rec = ts.form(http.MethodPost, "/api/validate-image", url.Values{"image_base64": {"broken"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_image", decode(t, rec)["error"])

	rec = ts.form(http.MethodPost, "/api/validate-image", url.Values{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_fields", decode(t, rec)["error"])
}

func TestIdentifyDevice(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.validation = entities.ValidationResult{IsValid: true}
	ts.analyzer.device = entities.DeviceProfile{DeviceType: "WiFi Router", Brand: "TP-Link", Confidence: 0.9}

	rec := ts.form(http.MethodPost, "/api/identify-device", url.Values{"image_base64": {"aW1n"}, "query": {"what is this"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "WiFi Router", body["device_type"])
	assert.Equal(t, "TP-Link", body["brand"])
}

func TestIdentifyDevice_RejectedImage(t *testing.T) {
	ts := newTestServer(t)
	reason := "This appears to be a photo of a person."
	suggestion := "Please upload a photo of an electronic device."
	ts.analyzer.validation = entities.ValidationResult{IsValid: false, RejectionReason: &reason, Suggestion: &suggestion}

	rec := ts.form(http.MethodPost, "/api/identify-device", url.Values{"image_base64": {"aW1n"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success": false, "reason": "This appears to be a photo of a person.",
		"suggestion": "Please upload a photo of an electronic device."}`, rec.Body.String())
	assert.False(t, ts.analyzer.detected)
}

func TestQuotaStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.breakerOpen = true

	rec := ts.form(http.MethodGet, "/api/quota-status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["circuit_breaker_active"])
	assert.Equal(t, "quota_exhausted", body["status"])
}

func TestResetQuota_AdminKey(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.breakerOpen = true

	rec := ts.form(http.MethodPost, "/api/reset-quota", url.Values{"admin_key": {"wrong"}}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, ts.gateway.resets)

	rec = ts.form(http.MethodPost, "/api/reset-quota", url.Values{"admin_key": {"test-admin"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Circuit breaker reset", body["message"])
	status := body["status"].(map[string]interface{})
	assert.Equal(t, false, status["circuit_breaker_active"])
	assert.Equal(t, 1, ts.gateway.resets)
}

func TestResetQuota_BearerToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.form(http.MethodPost, "/api/admin/token", url.Values{"admin_key": {"wrong"}}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.form(http.MethodPost, "/api/admin/token", url.Values{"admin_key": {"test-admin"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	rec = ts.form(http.MethodPost, "/api/reset-quota", nil, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.gateway.resets)

	rec = ts.form(http.MethodPost, "/api/reset-quota", nil, http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "invalid_token", decode(t, rec)["error"])
}

func TestAnalyses(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for i, id := range []string{"req-a", "req-b"} {
		r := entities.NewAnalysisRecord(entities.AnalysisRequest{RequestID: id, Query: "slow wifi"})
		r.CreatedAt = time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC)
		require.NoError(t, ts.log.Create(ctx, r))
	}

	rec := ts.form(http.MethodGet, "/api/analyses", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.form(http.MethodGet, "/api/analyses?limit=1&admin_key=test-admin", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "req-b", records[0]["request_id"])

	rec = ts.form(http.MethodGet, "/api/analyses?limit=zero&admin_key=test-admin", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.form(http.MethodGet, "/api/analyses/req-a?admin_key=test-admin", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-a", decode(t, rec)["request_id"])

	rec = ts.form(http.MethodGet, "/api/analyses/missing?admin_key=test-admin", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
