package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/admin"
	"github.com/onchaincommerce/minibet/auth"
	"github.com/onchaincommerce/minibet/config"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/events/kafka"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/history"
	"github.com/onchaincommerce/minibet/pkg/jackpot"
	"github.com/onchaincommerce/minibet/types"
)

const testSecret = "test-secret"

var (
	playerA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerX  = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

type envelope struct {
	StatusCode int               `json:"status_code"`
	IsSuccess  bool              `json:"is_success"`
	Data       json.RawMessage   `json:"data"`
	Error      types.ErrorDetail `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return env
}

type fakeStats struct {
	stats game.UserStats
	err   error
}

func (f *fakeStats) UserStats(ctx context.Context, player common.Address) (game.UserStats, error) {
	return f.stats, f.err
}

type fakeResolver struct {
	outcome game.SpinOutcome
	err     error
}

func (f *fakeResolver) Lookup(ctx context.Context, hash common.Hash) (game.SpinOutcome, error) {
	if f.err != nil {
		return game.SpinOutcome{}, f.err
	}
	o := f.outcome
	o.TxHash = hash
	return o, nil
}

type fakeHistory struct {
	page        history.Page
	err         error
	gotPage     int
	invalidated chan string
}

func (f *fakeHistory) Page(ctx context.Context, player common.Address, page int) (history.Page, error) {
	f.gotPage = page
	if f.err != nil {
		return history.Page{}, f.err
	}
	p := f.page
	p.Page = page
	return p, nil
}

func (f *fakeHistory) Invalidate(ctx context.Context, player string) {
	if f.invalidated != nil {
		f.invalidated <- player
	}
}

type fakeAdmin struct {
	owner     common.Address
	withdrawn decimal.Decimal
	err       error
}

func (f *fakeAdmin) IsOwner(ctx context.Context, addr common.Address) (bool, error) {
	return addr == f.owner, nil
}

func (f *fakeAdmin) Overview(ctx context.Context) (admin.Overview, error) {
	return admin.Overview{Owner: f.owner, Balance: decimal.RequireFromString("2")}, nil
}

func (f *fakeAdmin) Withdraw(ctx context.Context, amount decimal.Decimal) (admin.WithdrawResult, error) {
	if f.err != nil {
		return admin.WithdrawResult{}, f.err
	}
	f.withdrawn = amount
	return admin.WithdrawResult{TxHash: "0x01", Amount: amount.String(), BlockNumber: 10}, nil
}

type fakeWins struct {
	ch           chan kafka.WinEvent
	recent       *kafka.RecentWins
	mu           sync.Mutex
	unsubscribed int
}

func (f *fakeWins) SubscribeAll() *kafka.Subscription {
	return &kafka.Subscription{ID: "sub", Player: "*", Channel: f.ch}
}

func (f *fakeWins) Unsubscribe(sub *kafka.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
}

func (f *fakeWins) Recent() *kafka.RecentWins {
	return f.recent
}

type fakeJackpotReader struct {
	mu     sync.Mutex
	spins  uint64
	needed uint64
}

func (f *fakeJackpotReader) set(spins uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spins = spins
}

func (f *fakeJackpotReader) JackpotStatus(ctx context.Context) (game.JackpotStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return game.JackpotStatus{CurrentSpins: f.spins, SpinsNeeded: f.needed}, nil
}

func (f *fakeJackpotReader) ContractBalance(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1e18), nil
}

func newTestApp(t *testing.T, svc Services) *App {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default() error = %v", err)
	}
	cfg.Environment = "test"
	cfg.JWT.Secret = testSecret

	app := New(Options{Config: cfg, Logger: zerolog.Nop(), Services: svc})
	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterManifest()
	app.RegisterAPIRoutes()
	return app
}

func serve(app *App, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, req)
	return w
}

func TestHealthAndManifest(t *testing.T) {
	app := newTestApp(t, Services{})

	w := serve(app, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), config.NetworkBaseSepolia) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}

	w = serve(app, http.MethodGet, "/.well-known/farcaster.json", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("manifest status = %d", w.Code)
	}
	var manifest config.FrameConfig
	if err := json.Unmarshal(w.Body.Bytes(), &manifest); err != nil {
		t.Fatalf("manifest decode: %v", err)
	}
	if manifest.Frame.Name != "minibet" || manifest.Frame.HomeURL == "" {
		t.Errorf("unexpected manifest %+v", manifest.Frame)
	}
}

func TestGetConfig(t *testing.T) {
	app := newTestApp(t, Services{})
	w := serve(app, http.MethodGet, "/api/config", "", nil)
	env := decode(t, w)
	if w.Code != http.StatusOK || !env.IsSuccess {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var got ConfigResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if got.Network.ChainID != 84532 {
		t.Errorf("chainId = %d", got.Network.ChainID)
	}
	if len(got.Payouts.Rules) != 3 || len(got.EventSignatures) == 0 {
		t.Errorf("unexpected payouts/signatures %+v", got)
	}
	if strings.Contains(w.Body.String(), "explorer_api_key") || strings.Contains(w.Body.String(), "ExplorerAPIKey") {
		t.Errorf("api key leaked: %s", w.Body.String())
	}
}

func TestGetStats(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		stats    *fakeStats
		wantCode int
		wantBody string
	}{
		{
			name: "ok",
			path: "/api/players/" + playerA.Hex() + "/stats",
			stats: &fakeStats{stats: game.UserStats{
				Spins:     big.NewInt(3),
				Winnings:  big.NewInt(5e17),
				Spent:     big.NewInt(3e15),
				NetProfit: big.NewInt(497e15),
			}},
			wantCode: http.StatusOK,
			wantBody: `"winnings":"0.5"`,
		},
		{
			name:     "bad address",
			path:     "/api/players/0x1234/stats",
			stats:    &fakeStats{},
			wantCode: http.StatusBadRequest,
			wantBody: "invalid player address",
		},
		{
			name:     "rpc failure",
			path:     "/api/players/" + playerA.Hex() + "/stats",
			stats:    &fakeStats{err: errors.New("dial tcp: refused")},
			wantCode: http.StatusBadGateway,
			wantBody: "Failed to read player stats",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, Services{Stats: tt.stats})
			w := serve(app, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %q", w.Body.String(), tt.wantBody)
			}
		})
	}

	app := newTestApp(t, Services{})
	if w := serve(app, http.MethodGet, "/api/players/"+playerA.Hex()+"/stats", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("nil stats status = %d", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	page := history.Page{
		Records: []game.WinRecord{
			{SpinID: "9", Tier: game.TierNoWin, Payout: "0", TxHash: "0x09"},
			{SpinID: "8", Tier: game.TierBigWin, Payout: "0.01", TxHash: "0x08"},
		},
		HasMore: true,
	}
	base := "/api/players/" + playerA.Hex() + "/history"

	tests := []struct {
		name        string
		query       string
		err         error
		wantCode    int
		wantRecords int
		wantPage    int
	}{
		{name: "default wins", query: "", wantCode: http.StatusOK, wantRecords: 1, wantPage: 1},
		{name: "all on page 2", query: "?view=all&page=2", wantCode: http.StatusOK, wantRecords: 2, wantPage: 2},
		{name: "bad page", query: "?page=0", wantCode: http.StatusBadRequest},
		{name: "bad view", query: "?view=losses", wantCode: http.StatusBadRequest},
		{
			name:     "explorer failure",
			query:    "",
			err:      apperrors.New(apperrors.ErrExplorer, "explorer unavailable"),
			wantCode: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := &fakeHistory{page: page, err: tt.err}
			app := newTestApp(t, Services{History: hist})
			w := serve(app, http.MethodGet, base+tt.query, "", nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var got HistoryResponse
			if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got.Records) != tt.wantRecords || got.Page != tt.wantPage || !got.HasMore {
				t.Errorf("got %+v", got)
			}
			if hist.gotPage != tt.wantPage {
				t.Errorf("service asked for page %d", hist.gotPage)
			}
		})
	}
}

func TestGetTx(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	jackpotOutcome := game.SpinOutcome{
		SpinID: big.NewInt(7),
		Player: playerA,
		Result: 0,
		Payout: decimal.RequireFromString("0.1"),
		Tier:   game.TierJackpot,
		Source: game.SourceEvent,
	}

	tests := []struct {
		name     string
		path     string
		resolver *fakeResolver
		wantCode int
		wantBody []string
	}{
		{
			name:     "jackpot",
			path:     "/api/tx/" + hash,
			resolver: &fakeResolver{outcome: jackpotOutcome},
			wantCode: http.StatusOK,
			wantBody: []string{`"tierName":"jackpot"`, `"shareUrl":"`, `"txUrl":"https://sepolia.basescan.org/tx/` + hash},
		},
		{
			name:     "malformed hash",
			path:     "/api/tx/0xabc",
			resolver: &fakeResolver{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "pending",
			path:     "/api/tx/" + hash,
			resolver: &fakeResolver{err: apperrors.New(apperrors.ErrUnconfirmed, "receipt not found")},
			wantCode: http.StatusAccepted,
			wantBody: []string{"receipt not found"},
		},
		{
			name:     "no logs",
			path:     "/api/tx/" + hash,
			resolver: &fakeResolver{err: apperrors.New(apperrors.ErrNoLogs, "no logs")},
			wantCode: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, Services{Tx: tt.resolver})
			w := serve(app, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			for _, s := range tt.wantBody {
				if !strings.Contains(w.Body.String(), s) {
					t.Errorf("body %s missing %q", w.Body.String(), s)
				}
			}
		})
	}
}

func newJackpot(t *testing.T, reader *fakeJackpotReader) *jackpot.Service {
	t.Helper()
	svc := jackpot.NewService(jackpot.ServiceConfig{Reader: reader, Logger: zerolog.Nop()})
	t.Cleanup(svc.Stop)
	return svc
}

func TestGetJackpotStatusRefreshesWhenEmpty(t *testing.T) {
	svc := newJackpot(t, &fakeJackpotReader{spins: 25, needed: 100})
	app := newTestApp(t, Services{Jackpot: svc})

	w := serve(app, http.MethodGet, "/api/jackpot", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	for _, s := range []string{`"currentSpins":25`, `"progress":25`, `"spinsRemaining":75`, `"contractBalance":1`} {
		if !strings.Contains(w.Body.String(), s) {
			t.Errorf("body %s missing %s", w.Body.String(), s)
		}
	}
	if _, ok := svc.Current(); !ok {
		t.Error("expected snapshot after refresh")
	}
}

func TestJackpotSSESendsSnapshot(t *testing.T) {
	svc := newJackpot(t, &fakeJackpotReader{spins: 10, needed: 100})
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	app := newTestApp(t, Services{Jackpot: svc})

	// A cancelled request still gets the greeting and the snapshot, then the
	// stream ends.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jackpot/updates", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	app.Router().ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, `data: {"type":"connected"`) {
		t.Errorf("stream should start with connected event: %s", body)
	}
	if !strings.Contains(body, `"type":"updated"`) || !strings.Contains(body, `"currentSpins":10`) {
		t.Errorf("missing snapshot: %s", body)
	}
}

func TestJackpotWebSocketStreamsChanges(t *testing.T) {
	reader := &fakeJackpotReader{spins: 10, needed: 100}
	svc := newJackpot(t, reader)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	app := newTestApp(t, Services{Jackpot: svc})
	srv := httptest.NewServer(app.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jackpot/updates/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() Response {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return r
	}

	if r := read(); r.Type != EventTypeConnected {
		t.Fatalf("first message = %+v", r)
	}
	if r := read(); r.Type != EventTypeUpdated || r.Jackpot == nil || r.Jackpot.CurrentSpins != 10 {
		t.Fatalf("snapshot = %+v", r)
	}

	reader.set(11)
	if _, err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if r := read(); r.Type != EventTypeUpdated || r.Jackpot == nil || r.Jackpot.CurrentSpins != 11 {
		t.Fatalf("change = %+v", r)
	}
}

func TestWinsStreamFiltersByPlayerAndNetwork(t *testing.T) {
	other := "0x00000000000000000000000000000000000000bb"
	a := strings.ToLower(playerA.Hex())
	feed := &fakeWins{ch: make(chan kafka.WinEvent, 3)}
	feed.ch <- kafka.WinEvent{Player: a, Network: config.NetworkBase, Spin: kafka.SpinDetails{TxHash: "0xmainnet"}}
	feed.ch <- kafka.WinEvent{Player: a, Network: config.NetworkBaseSepolia, Spin: kafka.SpinDetails{TxHash: "0xmine"}}
	feed.ch <- kafka.WinEvent{Player: other, Network: config.NetworkBaseSepolia, Spin: kafka.SpinDetails{TxHash: "0xtheirs"}}
	close(feed.ch)

	app := newTestApp(t, Services{Wins: feed})
	w := serve(app, http.MethodGet, "/api/wins/stream?player="+playerA.Hex(), "", nil)

	body := w.Body.String()
	if !strings.Contains(body, "0xmine") {
		t.Errorf("missing own win: %s", body)
	}
	if strings.Contains(body, "0xtheirs") || strings.Contains(body, "0xmainnet") {
		t.Errorf("unexpected events: %s", body)
	}
	if feed.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d", feed.unsubscribed)
	}
}

func TestRecentWins(t *testing.T) {
	app := newTestApp(t, Services{})
	if w := serve(app, http.MethodGet, "/api/wins/recent", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled feed status = %d", w.Code)
	}

	recent := kafka.NewRecentWins(5)
	recent.Add(kafka.WinEvent{EventID: "e1"})
	recent.Add(kafka.WinEvent{EventID: "e2"})
	app = newTestApp(t, Services{Wins: &fakeWins{recent: recent}})
	w := serve(app, http.MethodGet, "/api/wins/recent", "", nil)
	var got []kafka.WinEvent
	if err := json.Unmarshal(decode(t, w).Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "e2" {
		t.Errorf("got %+v", got)
	}
}

func TestAdminRoutes(t *testing.T) {
	ownerToken, err := auth.GenerateToken(testSecret, ownerX, auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	playerToken, err := auth.GenerateToken(testSecret, playerA, "", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	forged, err := auth.GenerateToken("other-secret", ownerX, auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       string
		adminErr   error
		wantCode   int
		wantAmount string
	}{
		{name: "no token", method: http.MethodPost, path: "/api/admin/withdraw", body: `{"amount":"1"}`, wantCode: http.StatusUnauthorized},
		{name: "forged token", method: http.MethodPost, path: "/api/admin/withdraw", token: forged, body: `{"amount":"1"}`, wantCode: http.StatusUnauthorized},
		{name: "not owner", method: http.MethodPost, path: "/api/admin/withdraw", token: playerToken, body: `{"amount":"1"}`, wantCode: http.StatusForbidden},
		{name: "withdraw", method: http.MethodPost, path: "/api/admin/withdraw", token: ownerToken, body: `{"amount":"0.5"}`, wantCode: http.StatusOK, wantAmount: "0.5"},
		{name: "withdraw all", method: http.MethodPost, path: "/api/admin/withdraw", token: ownerToken, body: `{"amount":"0"}`, wantCode: http.StatusOK, wantAmount: "0"},
		{name: "bad amount", method: http.MethodPost, path: "/api/admin/withdraw", token: ownerToken, body: `{"amount":"lots"}`, wantCode: http.StatusBadRequest},
		{name: "missing amount", method: http.MethodPost, path: "/api/admin/withdraw", token: ownerToken, body: `{}`, wantCode: http.StatusBadRequest},
		{name: "exceeds balance", method: http.MethodPost, path: "/api/admin/withdraw", token: ownerToken, body: `{"amount":"9"}`, adminErr: admin.ErrExceedsBalance, wantCode: http.StatusBadRequest},
		{name: "overview", method: http.MethodGet, path: "/api/admin/overview", token: ownerToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeAdmin{owner: ownerX, err: tt.adminErr}
			app := newTestApp(t, Services{Admin: svc})
			headers := map[string]string{}
			if tt.token != "" {
				headers["Authorization"] = "Bearer " + tt.token
			}
			w := serve(app, tt.method, tt.path, tt.body, headers)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantAmount != "" && svc.withdrawn.String() != tt.wantAmount {
				t.Errorf("withdrawn = %s, want %s", svc.withdrawn, tt.wantAmount)
			}
		})
	}

	app := newTestApp(t, Services{})
	w := serve(app, http.MethodGet, "/api/admin/overview", "", map[string]string{"Authorization": "Bearer " + ownerToken})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("admin disabled status = %d", w.Code)
	}
}

func TestAttachWinFeedInvalidatesHistory(t *testing.T) {
	feed := &fakeWins{ch: make(chan kafka.WinEvent, 1)}
	hist := &fakeHistory{invalidated: make(chan string, 1)}
	app := newTestApp(t, Services{Wins: feed, History: hist})

	app.AttachWinFeed()
	feed.ch <- kafka.WinEvent{Player: "0xabc"}

	select {
	case got := <-hist.invalidated:
		if got != "0xabc" {
			t.Errorf("invalidated %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("history was not invalidated")
	}

	app.detachWinFeed()
	feed.mu.Lock()
	defer feed.mu.Unlock()
	if feed.unsubscribed != 1 {
		t.Errorf("unsubscribed = %d", feed.unsubscribed)
	}
}

func TestShutdownEndsStreamsAndRunsHooks(t *testing.T) {
	svc := newJackpot(t, &fakeJackpotReader{spins: 10, needed: 100})
	app := newTestApp(t, Services{Jackpot: svc})
	srv := httptest.NewServer(app.Router())
	defer srv.Close()
	app.httpServer = srv.Config

	resp, err := http.Get(srv.URL + "/api/jackpot/updates")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.Contains(line, `"type":"connected"`) {
		t.Fatalf("expected connected event, got %q (%v)", line, err)
	}

	hooks := 0
	app.OnShutdown(func() { hooks++ })

	done := make(chan error, 1)
	go func() { done <- app.shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked by an open stream")
	}

	if hooks != 1 {
		t.Errorf("shutdown hooks run = %d, want 1", hooks)
	}
	if _, err := io.ReadAll(reader); err != nil {
		t.Errorf("stream did not end cleanly: %v", err)
	}
}

func TestShutdownRunsHooksWhenServerTimesOut(t *testing.T) {
	app := newTestApp(t, Services{})
	release := make(chan struct{})
	entered := make(chan struct{})
	app.Router().GET("/slow", func(c *gin.Context) {
		close(entered)
		<-release
		c.Status(http.StatusNoContent)
	})
	srv := httptest.NewServer(app.Router())
	defer srv.Close()
	defer close(release)
	app.httpServer = srv.Config
	app.shutdownTimeout = 50 * time.Millisecond

	go func() {
		resp, err := http.Get(srv.URL + "/slow")
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	hooks := 0
	app.OnShutdown(func() { hooks++ })

	if err := app.shutdown(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("shutdown() error = %v, want deadline exceeded", err)
	}
	if hooks != 1 {
		t.Errorf("shutdown hooks run = %d, want 1", hooks)
	}
}

func TestSuccessEnvelope(t *testing.T) {
	app := newTestApp(t, Services{})
	w := serve(app, http.MethodGet, "/api/config", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp BaseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.IsSuccess || resp.StatusCode != http.StatusOK || resp.Data == nil {
		t.Errorf("unexpected envelope %+v", resp)
	}
}
