// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakesync/amount"
	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/contracts"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/metrics"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/session"
	"github.com/vechain/stakesync/test/datagen"
	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/txcoord"
)

func init() {
	metrics.InitializePrometheusMetrics()
}

type fakeCoordinator struct {
	model     *model.Model
	submitErr error
}

func (c *fakeCoordinator) Submit(context.Context) (*bridge.Receipt, error) {
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	c.model.CompareAndSetWait(model.Idle, model.Confirmed)
	return &bridge.Receipt{ID: "req-1"}, nil
}

func (c *fakeCoordinator) Acknowledge() bool {
	return c.model.CompareAndSetWait(model.Confirmed, model.Idle)
}

func (c *fakeCoordinator) SetActiveAction(a model.Action) { c.model.SetAction(a) }
func (c *fakeCoordinator) SetAmountInput(text string)     { c.model.SetAmountInput(text) }
func (c *fakeCoordinator) SetAmountToMax()                { c.model.SetAmountToMax() }

type fakeConnector struct {
	err error
}

func (c fakeConnector) Connect(context.Context) (*session.Link, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &session.Link{URL: "wallet://connect", QR: "qr"}, nil
}

type fixture struct {
	model    *model.Model
	errs     *errmsg.Channel
	counter  *reqcount.Counter
	coord    *fakeCoordinator
	logLevel *slog.LevelVar
	server   *httptest.Server
	close    func()
}

func newFixture(t *testing.T, connector Connector) *fixture {
	f := &fixture{
		model:    model.New(thor.TestNet),
		errs:     &errmsg.Channel{},
		counter:  &reqcount.Counter{},
		logLevel: new(slog.LevelVar),
	}
	f.coord = &fakeCoordinator{model: f.model}

	handler, closeSubs := New(Deps{
		Model:       f.model,
		Errors:      f.errs,
		Counter:     f.counter,
		Coordinator: f.coord,
		Connector:   connector,
		LogLevel:    f.logLevel,
	}, Options{
		AllowedOrigins: "*",
		EnableMetrics:  true,
		HealthyWithin:  time.Minute,
	})
	f.server = httptest.NewServer(handler)
	f.close = closeSubs
	t.Cleanup(func() {
		closeSubs()
		f.server.Close()
	})
	return f
}

func (f *fixture) load(t *testing.T, balance *big.Int) {
	f.model.SetAddress(model.Some(datagen.RandAddress()))
	st, gen := f.model.Read()
	snap := st.Snapshot
	snap.Block = 12
	snap.Balance = model.Some(balance)
	snap.Treasury = model.Some(&contracts.TreasuryState{TotalCoins: amount.Coins(1000), TotalTokens: amount.Coins(500)})
	require.NoError(t, f.model.Commit(gen, snap))
}

func (f *fixture) do(t *testing.T, method, path string, body any) (map[string]any, int) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var v map[string]any
	if json.Unmarshal(data, &v) != nil {
		v = map[string]any{"text": strings.TrimSpace(string(data))}
	}
	return v, res.StatusCode
}

func TestState(t *testing.T) {
	f := newFixture(t, fakeConnector{})

	v, code := f.do(t, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, v["connected"])
	assert.Equal(t, "Connect Wallet", v["buttonLabel"])
	assert.Nil(t, v["balance"])
	assert.Equal(t, "idle", v["wait"])
	assert.Equal(t, "stake", v["action"])

	f.load(t, amount.Coins(100))
	f.errs.Set("Unable to access blockchain", time.Minute)
	f.counter.Begin()
	defer f.counter.End()

	v, code = f.do(t, http.MethodGet, "/state", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, v["connected"])
	assert.Equal(t, float64(12), v["block"])
	assert.Equal(t, "Stake", v["buttonLabel"])
	assert.Equal(t, "99", v["maxAmount"])
	assert.Equal(t, "Unable to access blockchain", v["errorMessage"])
	assert.Equal(t, float64(1), v["requests"])
	assert.Equal(t, 0.5, v["exchangeRate"])
}

func TestFormMutators(t *testing.T) {
	f := newFixture(t, fakeConnector{})
	f.load(t, amount.Coins(100))

	v, code := f.do(t, http.MethodPost, "/amount", amountRequest{Text: "10"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "10", v["amount"])
	assert.Equal(t, true, v["buttonEnabled"])

	v, code = f.do(t, http.MethodPost, "/amount/max", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "99", v["amount"])

	v, code = f.do(t, http.MethodPost, "/action", actionRequest{Action: "unstake"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "unstake", v["action"])
	assert.Equal(t, "", v["amount"])

	_, code = f.do(t, http.MethodPost, "/action", actionRequest{Action: "burn"})
	assert.Equal(t, http.StatusBadRequest, code)

	_, code = f.do(t, http.MethodPost, "/amount", map[string]string{"unknown": "1"})
	assert.Equal(t, http.StatusBadRequest, code)

	_, code = f.do(t, http.MethodGet, "/amount", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestSubmitAndAcknowledge(t *testing.T) {
	f := newFixture(t, fakeConnector{})

	_, code := f.do(t, http.MethodPost, "/acknowledge", nil)
	assert.Equal(t, http.StatusConflict, code)

	v, code := f.do(t, http.MethodPost, "/submit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "req-1", v["id"])
	assert.Equal(t, model.Confirmed, f.model.State().Wait)

	v, code = f.do(t, http.MethodPost, "/acknowledge", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "idle", v["wait"])

	tests := []struct {
		err  error
		code int
	}{
		{txcoord.ErrInvalidAmount, http.StatusBadRequest},
		{txcoord.ErrNotReady, http.StatusConflict},
		{txcoord.ErrBusy, http.StatusConflict},
		{fmt.Errorf("send: %w: user cancelled", bridge.ErrRejected), http.StatusForbidden},
		{errors.New("bridge unreachable"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		f.coord.submitErr = tt.err
		v, code := f.do(t, http.MethodPost, "/submit", nil)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Contains(t, v["text"], tt.err.Error())
	}
}

func TestConnect(t *testing.T) {
	f := newFixture(t, fakeConnector{})
	v, code := f.do(t, http.MethodPost, "/connect", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "wallet://connect", v["link"])
	assert.Equal(t, "qr", v["qr"])

	f = newFixture(t, fakeConnector{err: errors.New("bridge down")})
	_, code = f.do(t, http.MethodPost, "/connect", nil)
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fakeConnector{})

	v, code := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, v["healthy"])

	f.load(t, amount.Coins(1))
	v, code = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, v["healthy"])
	assert.Equal(t, float64(12), v["block"])

	h := newHealth(f.model, time.Nanosecond)
	time.Sleep(time.Millisecond)
	assert.False(t, h.status().Healthy)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           any
		expectedStatus int
		expectedLevel  string
		expectedError  string
	}{
		{"set debug", http.MethodPost, logLevelRequest{Level: "debug"}, http.StatusOK, "DEBUG", ""},
		{"set trace", http.MethodPost, logLevelRequest{Level: "trace"}, http.StatusOK, "DEBUG-4", ""},
		{"invalid level", http.MethodPost, logLevelRequest{Level: "loud"}, http.StatusBadRequest, "", "Invalid verbosity level"},
		{"get", http.MethodGet, nil, http.StatusOK, "INFO", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeConnector{})
			f.logLevel.Set(slog.LevelInfo)

			v, code := f.do(t, tt.method, "/admin/loglevel", tt.body)
			assert.Equal(t, tt.expectedStatus, code)
			if tt.expectedLevel != "" {
				assert.Equal(t, tt.expectedLevel, v["currentLevel"])
				assert.Equal(t, tt.expectedLevel, f.logLevel.Level().String())
			} else {
				assert.Equal(t, tt.expectedError, v["text"])
			}
		})
	}
}

func TestSubscribeState(t *testing.T) {
	f := newFixture(t, fakeConnector{})

	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/subscriptions/state"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]any {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var v map[string]any
		require.NoError(t, conn.ReadJSON(&v))
		return v
	}

	v := read()
	assert.Equal(t, "", v["amount"])

	f.model.SetAmountInput("42")
	require.Eventually(t, func() bool {
		return read()["amount"] == "42"
	}, 2*time.Second, time.Millisecond)

	f.errs.Set("Your wallet must be on TestNet", time.Minute)
	require.Eventually(t, func() bool {
		return read()["errorMessage"] == "Your wallet must be on TestNet"
	}, 2*time.Second, time.Millisecond)

	// closing the api ends the subscription
	done := make(chan struct{})
	go func() {
		f.close()
		close(done)
	}()
	for {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
			break
		}
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriptions did not close")
	}
}

func TestMetricsMiddleware(t *testing.T) {
	f := newFixture(t, fakeConnector{})

	f.do(t, http.MethodGet, "/state", nil)
	f.do(t, http.MethodPost, "/action", actionRequest{Action: "burn"})

	ts := httptest.NewServer(metrics.HTTPHandler())
	defer ts.Close()
	res, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer res.Body.Close()

	parser := expfmt.TextParser{}
	families, err := parser.TextToMetricFamilies(res.Body)
	require.NoError(t, err)

	family, ok := families["stakesync_metrics_api_request_count"]
	require.True(t, ok)

	counts := make(map[string]float64)
	for _, m := range family.GetMetric() {
		labels := make(map[string]string)
		for _, l := range m.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		counts[labels["name"]+" "+labels["code"]] += m.GetCounter().GetValue()
	}
	assert.GreaterOrEqual(t, counts["GET /state 200"], float64(1))
	assert.GreaterOrEqual(t, counts["POST /action 400"], float64(1))
}
