package console

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-sdk/internal/config"
	"github.com/taoyao-code/iot-sdk/pkg/datablob"
	"github.com/taoyao-code/iot-sdk/pkg/message"
	"github.com/taoyao-code/iot-sdk/pkg/sdk"
)

type testConsole struct {
	t   *testing.T
	api *sdk.API
	r   *gin.Engine
}

func newTestConsole(t *testing.T, auth cfgpkg.AuthConfig) *testConsole {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api, err := sdk.Open(sdk.Params{User: "console"}, sdk.WithMessageRate(200))
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close() })

	r := gin.New()
	RegisterRoutes(r, api, auth, zap.NewNop())
	return &testConsole{t: t, api: api, r: r}
}

func (tc *testConsole) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	tc.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(tc.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	tc.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestInfoAndSources(t *testing.T) {
	tc := newTestConsole(t, cfgpkg.AuthConfig{})

	w := tc.do(http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[map[string]interface{}](t, w)
	assert.Equal(t, "0.1.0", info["version"])
	assert.Equal(t, "console", info["user"])

	w = tc.do(http.MethodGet, "/api/v1/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sources := decode[struct {
		Sources []datablob.Description `json:"sources"`
	}](t, w)
	assert.Equal(t, []datablob.Description(datablob.DefaultCatalog()), sources.Sources)

	w = tc.do(http.MethodPut, "/api/v1/verbosity", gin.H{"verbosity": 201})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint16(201), tc.api.Verbosity())
}

func TestBlobLifecycle(t *testing.T) {
	tc := newTestConsole(t, cfgpkg.AuthConfig{})

	w := tc.do(http.MethodPost, "/api/v1/blobs", gin.H{"name": "/bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = tc.do(http.MethodPost, "/api/v1/blobs", gin.H{"rate": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do(http.MethodPost, "/api/v1/blobs", gin.H{"rate": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	info := decode[StreamInfo](t, w)
	assert.Equal(t, "stopped", info.State)
	assert.Equal(t, "pull", info.Mode)

	base := "/api/v1/blobs/" + info.ID

	w = tc.do(http.MethodGet, base+"/next", nil)
	assert.Equal(t, http.StatusNoContent, w.Code, "未推流时立即超时")

	w = tc.do(http.MethodPut, base+"/streaming", gin.H{"running": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", decode[StreamInfo](t, w).State)

	w = tc.do(http.MethodGet, base+"/next?timeout=1s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	blob := decode[BlobView](t, w)
	assert.Equal(t, datablob.PayloadSize, blob.Size)
	assert.Len(t, blob.Data, datablob.PayloadSize)
	assert.Equal(t, blob.Time.Unix(), blob.Sec)

	w = tc.do(http.MethodGet, "/api/v1/streams", nil)
	require.Equal(t, http.StatusOK, w.Code)
	streams := decode[struct {
		Streams []StreamInfo `json:"streams"`
	}](t, w).Streams
	require.Len(t, streams, 2)
	assert.Equal(t, "messages", streams[0].Kind)
	assert.Equal(t, info.ID, streams[1].ID)

	w = tc.do(http.MethodGet, base+"/next?timeout=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = tc.do(http.MethodGet, base+"/next", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessages(t *testing.T) {
	tc := newTestConsole(t, cfgpkg.AuthConfig{})

	w := tc.do(http.MethodPut, "/api/v1/messages/level", gin.H{"level": "loud"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = tc.do(http.MethodPut, "/api/v1/messages/level", gin.H{"level": "error"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, message.LevelError, tc.api.Messages().MinimumLevel())

	w = tc.do(http.MethodPut, "/api/v1/messages/streaming", gin.H{"running": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodGet, "/api/v1/messages/next?timeout=1s", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[MessageView](t, w)
	assert.GreaterOrEqual(t, m.Level, message.LevelError)
	assert.Equal(t, message.NullText, m.Value)

	require.Eventually(t, func() bool { return tc.api.Messages().Pending() >= 2 }, time.Second, 5*time.Millisecond)
	w = tc.do(http.MethodPut, "/api/v1/messages/streaming", gin.H{"running": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodGet, "/api/v1/messages/pending?max=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[struct {
		Messages []MessageView `json:"messages"`
	}](t, w)
	assert.Len(t, pending.Messages, 1)

	w = tc.do(http.MethodGet, "/api/v1/messages/pending?max=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tc.do(http.MethodPut, "/api/v1/messages/streaming", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClosedAPI(t *testing.T) {
	tc := newTestConsole(t, cfgpkg.AuthConfig{})
	require.NoError(t, tc.api.Close())

	w := tc.do(http.MethodGet, "/api/v1/messages/next", nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	tc := newTestConsole(t, cfgpkg.AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456789"}})

	w := tc.do(http.MethodGet, "/api/v1/info", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = tc.do(http.MethodGet, "/api/v1/info", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = tc.do(http.MethodGet, "/api/v1/info", nil, "X-API-Key", "sk_test_123456789")
	assert.Equal(t, http.StatusOK, w.Code)

	w = tc.do(http.MethodGet, "/api/v1/info", nil, "Authorization", "Bearer sk_test_123456789")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk_t****6789", maskAPIKey("sk_test_123456789"))
}
