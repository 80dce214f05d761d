package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/smsinternational/golang_services/internal/sms_relay_service/app"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/domain"
	"github.com/smsinternational/golang_services/internal/sms_relay_service/provider"
	httptransport "github.com/smsinternational/golang_services/internal/sms_relay_service/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDispatcher is a mock implementation of httptransport.Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req domain.SendRequest) (domain.SendResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.SendResult), args.Error(1)
}

func (m *MockDispatcher) ProviderNames() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, d httptransport.Dispatcher) *httptest.Server {
	t.Helper()
	h := httptransport.NewSendHandler(d, discardLogger(), nil, "fra1")
	server := httptest.NewServer(httptransport.NewRouter(h, discardLogger()))
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func assertCORS(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestSendHandler_MissingFieldsReturn400WithoutDispatch(t *testing.T) {
	testCases := []struct {
		name        string
		body        string
		wantDetails string
	}{
		{"missing phone", `{"message":"hello"}`, "missing field: phone"},
		{"empty message", `{"phone":"+15551234567","message":""}`, "missing field: message"},
		{"both missing", `{}`, "missing field: phone, message"},
		{"empty body", ``, "missing field: phone, message"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := &MockDispatcher{}
			server := newTestServer(t, d)

			resp, body := postJSON(t, server.URL+"/send", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assertCORS(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Phone and message are required", body["error"])
			assert.Equal(t, tc.wantDetails, body["details"])
			d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestSendHandler_Success(t *testing.T) {
	d := &MockDispatcher{}
	quota := 0
	d.On("Dispatch", mock.Anything, domain.SendRequest{Phone: "+15551234567", Message: "hello"}).
		Return(domain.SendResult{Success: true, Provider: "textbelt-official", ExternalID: "42", QuotaRemaining: &quota}, nil).Once()
	server := newTestServer(t, d)

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"+15551234567","message":"hello"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assertCORS(t, resp)
	assert.Equal(t, map[string]any{
		"success":        true,
		"textId":         "42",
		"quotaRemaining": float64(0),
		"provider":       "textbelt-official",
	}, body)
	d.AssertExpectations(t)
}

func TestSendHandler_AliasesBehaveLikeSend(t *testing.T) {
	for _, path := range []string{"/api/send-sms", "/api/sms"} {
		t.Run(path, func(t *testing.T) {
			d := &MockDispatcher{}
			d.On("Dispatch", mock.Anything, mock.Anything).
				Return(domain.SendResult{Success: true, Provider: "A"}, nil).Once()
			server := newTestServer(t, d)

			resp, body := postJSON(t, server.URL+path, `{"phone":"1","message":"m"}`)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, true, body["success"])
			assert.NotContains(t, body, "textId")
			assert.NotContains(t, body, "quotaRemaining")
		})
	}
}

func TestSendHandler_FormEncodedBody(t *testing.T) {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, domain.SendRequest{Phone: "+15551234567", Message: "hi there"}).
		Return(domain.SendResult{Success: true, Provider: "A", ExternalID: "x"}, nil).Once()
	server := newTestServer(t, d)

	form := url.Values{"phone": {"+15551234567"}, "message": {"hi there"}}
	resp, err := http.PostForm(server.URL+"/send", form)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "x", body["textId"])
	d.AssertExpectations(t)
}

func TestSendHandler_MultipartBody(t *testing.T) {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, domain.SendRequest{Phone: "123", Message: "multi"}).
		Return(domain.SendResult{Success: true, Provider: "A"}, nil).Once()
	server := newTestServer(t, d)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("phone", "123"))
	require.NoError(t, mw.WriteField("message", "multi"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(server.URL+"/send", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	d.AssertExpectations(t)
}

func TestSendHandler_InvalidJSONIsUnexpected(t *testing.T) {
	d := &MockDispatcher{}
	server := newTestServer(t, d)

	resp, body := postJSON(t, server.URL+"/send", `{"phone":`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to send SMS", body["error"])
	assert.Contains(t, body["details"], "invalid JSON body")
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestSendHandler_AllProvidersFailed(t *testing.T) {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).
		Return(domain.SendResult{Error: "C: HTTP 503"}, fmt.Errorf("%w: C: HTTP 503", domain.ErrAllProvidersExhausted)).Once()
	server := newTestServer(t, d)

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"1","message":"m"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, map[string]any{
		"success": false,
		"error":   "All SMS strategies failed",
		"details": "C: HTTP 503",
	}, body)
}

func TestSendHandler_UnexpectedDispatchError(t *testing.T) {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).
		Return(domain.SendResult{}, fmt.Errorf("%w: dispatch cancelled", domain.ErrUnexpected)).Once()
	server := newTestServer(t, d)

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"1","message":"m"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to send SMS", body["error"])
	assert.Contains(t, body["details"], "dispatch cancelled")
}

func TestSendHandler_PanicIsRecoveredAsJSON(t *testing.T) {
	d := &MockDispatcher{}
	d.On("Dispatch", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	}).Return(domain.SendResult{}, nil)
	server := newTestServer(t, d)

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"1","message":"m"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, "Failed to send SMS", body["error"])
	assert.Equal(t, "boom", body["details"])
}

func TestOptionsReturnsCORSHeadersWithoutDispatch(t *testing.T) {
	d := &MockDispatcher{}
	server := newTestServer(t, d)

	for _, path := range []string{"/send", "/api/send-sms", "/api/test", "/nowhere"} {
		req, err := http.NewRequest(http.MethodOptions, server.URL+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Empty(t, raw)
		assertCORS(t, resp)
	}
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestGetSendReturnsInfo(t *testing.T) {
	d := &MockDispatcher{}
	d.On("ProviderNames").Return([]string{"A", "B"})
	server := newTestServer(t, d)

	resp, err := http.Get(server.URL + "/send")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, "SMS Proxy API v2.0 - Ready", body["message"])
	assert.Equal(t, []any{"A", "B"}, body["providers"])
	assert.Equal(t, "fra1", body["region"])
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	server := newTestServer(t, &MockDispatcher{})

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/send", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, "Method not allowed", body["error"])

	resp, err = http.Get(server.URL + "/nowhere")
	require.NoError(t, err)
	body = decodeBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, "Not found", body["error"])
}

func TestEchoRoute(t *testing.T) {
	server := newTestServer(t, &MockDispatcher{})

	resp, err := http.Get(server.URL + "/api/test")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "API Test Route Working", body["message"])
	assert.Equal(t, "GET", body["method"])

	resp, body = postJSON(t, server.URL+"/api/test", `{"ping":1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "POST", body["method"])
	assert.Equal(t, map[string]any{"ping": float64(1)}, body["received"])

	resp, body = postJSON(t, server.URL+"/api/test", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid JSON", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestHealthAndMetrics(t *testing.T) {
	server := newTestServer(t, &MockDispatcher{})

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SMS relay is healthy", body["status"])

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "sms_relay_http_requests_total")
}

// End to end through the real dispatcher and HTTP providers against stub upstreams.
func TestSendEndToEnd_QuotaFallbackToSecondProvider(t *testing.T) {
	var firstCalls, secondCalls atomic.Int32
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstCalls.Add(1)
		fmt.Fprint(w, `{"success":false,"error":"Out of quota","quotaRemaining":0}`)
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secondCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15551234567", r.PostForm.Get("phone"))
		fmt.Fprint(w, `{"success":true,"textId":"42","quotaRemaining":0}`)
	}))
	defer second.Close()

	providers, err := provider.NewAll([]domain.ProviderConfig{
		{Name: "textbelt-official", Endpoint: first.URL, Success: "textbelt"},
		{Name: "textbelt-demo", Endpoint: second.URL, Success: "textbelt"},
	}, provider.Dependencies{Logger: discardLogger()})
	require.NoError(t, err)
	server := newTestServer(t, app.NewDispatcher(providers, discardLogger()))

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"+15551234567","message":"hello"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{
		"success":        true,
		"textId":         "42",
		"quotaRemaining": float64(0),
		"provider":       "textbelt-demo",
	}, body)
	assert.Equal(t, int32(1), firstCalls.Load())
	assert.Equal(t, int32(1), secondCalls.Load())
}

func TestSendEndToEnd_AllFailReportsLastProvider(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":"Invalid key"}`)
	}))
	defer rejecting.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	providers, err := provider.NewAll([]domain.ProviderConfig{
		{Name: "A", Endpoint: rejecting.URL, Success: "textbelt"},
		{Name: "C", Endpoint: broken.URL, Success: "textbelt"},
	}, provider.Dependencies{Logger: discardLogger()})
	require.NoError(t, err)
	server := newTestServer(t, app.NewDispatcher(providers, discardLogger()))

	resp, body := postJSON(t, server.URL+"/send", `{"phone":"1","message":"m"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "All SMS strategies failed", body["error"])
	assert.Equal(t, "C: HTTP 503", body["details"])
}
