package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geckopulse/engine/internal/config"
	"github.com/geckopulse/engine/internal/pipeline"
)

type fakeSender struct {
	texts []string
}

func (f *fakeSender) SendText(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		WhaleSOL:      50,
		SweepCount:    3,
		SweepWindow:   120 * time.Second,
		WatchSources:  []string{"tensor"},
		FetchTimeout:  time.Second,
		AdminUser:     "admin",
		AdminPassword: "hunter2",
	}
}

func setupTestServer(t *testing.T, cfg *config.Config, tester TextSender) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(cfg, pipeline.New(cfg, pipeline.Options{}), tester)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, method, url, body string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth("admin", "hunter2")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const saleBatch = `[
	{"type": "NFT_SALE", "source": "TENSOR", "signature": "sig-a",
	 "events": {"nft": {"buyer": "B", "seller": "S", "amount": 2500000000,
	 "nfts": [{"mint": "M1", "name": "Gecko #1"}]}}},
	{"type": "NFT_MINT", "source": "TENSOR", "signature": "sig-b"},
	"not an object"
]`

func TestHealth(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), nil)

	resp := do(t, "GET", ts.URL+"/health", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestWebhookRejectsNonList(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), nil)

	for _, payload := range []string{`{"type": "NFT_SALE"}`, `not json`, `"text"`} {
		resp := do(t, "POST", ts.URL+pipeline.WebhookPath, payload, false)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
	}
}

func TestWebhookProcessesBatch(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), nil)

	resp := do(t, "POST", ts.URL+pipeline.WebhookPath, saleBatch, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[WebhookResponse](t, resp)
	assert.Equal(t, 2, result.Received)
	assert.Equal(t, 0, result.Sent)
	_, err := uuid.Parse(result.BatchID)
	assert.NoError(t, err)

	status := decode[StatusResponse](t, do(t, "GET", ts.URL+"/api/status", "", false))
	assert.Equal(t, int64(1), status.Stats.SalesSeen)
	assert.Equal(t, 1, status.Stats.Sales24h)
	assert.Equal(t, 2.5, status.Stats.Volume24h)
	require.Len(t, status.RecentSales, 1)
	assert.Equal(t, "Gecko #1", status.RecentSales[0].Name)
	assert.Equal(t, "2.5000 SOL", status.RecentSales[0].Price)
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	_, ts := setupTestServer(t, testConfig(), nil)

	resp := do(t, "GET", ts.URL+pipeline.WebhookPath, "", false)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminAuth(t *testing.T) {
	cfg := testConfig()
	_, ts := setupTestServer(t, cfg, nil)

	resp := do(t, "GET", ts.URL+"/api/config", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	req, _ := http.NewRequest("GET", ts.URL+"/api/config", nil)
	req.SetBasicAuth("admin", "wrong")
	wrong, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	wrong.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)

	resp = do(t, "GET", ts.URL+"/api/config", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[config.Snapshot](t, resp)
	assert.Equal(t, pipeline.WebhookPath, snap.WebhookPath)
	assert.Equal(t, "(not set)", snap.BotToken)
}

func TestAdminUnavailableWithoutCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.AdminUser = ""
	_, ts := setupTestServer(t, cfg, nil)

	resp := do(t, "POST", ts.URL+"/api/simulate/sale", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSimulateSaleWithoutNotifier(t *testing.T) {
	s, ts := setupTestServer(t, testConfig(), nil)

	resp := do(t, "POST", ts.URL+"/api/simulate/sale", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[SimulateResponse](t, resp)
	assert.Equal(t, "SALE", out.Kind)
	assert.False(t, out.Delivered)
	assert.Contains(t, out.Error, "TELEGRAM_BOT_TOKEN")
	assert.Empty(t, out.Notice)
	assert.Len(t, s.pipeline.Tracker().RecentSales(), 1)
}

func TestSimulateListing(t *testing.T) {
	s, ts := setupTestServer(t, testConfig(), nil)

	out := decode[SimulateResponse](t, do(t, "POST", ts.URL+"/api/simulate/listing", "", true))
	assert.Equal(t, "LISTING", out.Kind)
	assert.False(t, out.Delivered)
	assert.Equal(t, "Simulated listing added.", out.Notice)
	assert.Len(t, s.pipeline.Tracker().RecentListings(), 1)
}

func TestSendTestMessage(t *testing.T) {
	sender := &fakeSender{}
	_, ts := setupTestServer(t, testConfig(), sender)

	resp := do(t, "POST", ts.URL+"/api/test", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{TestMessage}, sender.texts)

	_, bare := setupTestServer(t, testConfig(), nil)
	resp = do(t, "POST", bare.URL+"/api/test", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReloadMintlistEndpoint(t *testing.T) {
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"mint": "M1"}, {"mint": "M2"}]`))
	}))
	defer list.Close()

	cfg := testConfig()
	_, ts := setupTestServer(t, cfg, nil)

	resp := do(t, "POST", ts.URL+"/api/mintlist/reload", "", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cfg.WatchMintlistURL = list.URL
	resp = do(t, "POST", ts.URL+"/api/mintlist/reload", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]int](t, resp)
	assert.Equal(t, 2, out["added"])
	assert.Equal(t, 2, out["watch_mints"])
}

func TestStreamPushesStatus(t *testing.T) {
	s, ts := setupTestServer(t, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	do(t, "POST", ts.URL+pipeline.WebhookPath, saleBatch, false)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "status", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, 1, msg.Data.Stats.Sales24h)
	assert.Len(t, msg.Data.RecentSales, 1)
	assert.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 10*time.Millisecond)
}
