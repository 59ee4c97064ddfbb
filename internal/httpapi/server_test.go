package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RidhamAnand/EDAI-4/internal/ingest"
	"github.com/RidhamAnand/EDAI-4/internal/realtime"
	"github.com/RidhamAnand/EDAI-4/internal/store"

	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) *store.Repo {
	t.Helper()
	// Use a unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:httpapi_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Serialize writes; the in-memory driver does not tolerate concurrent
	// writers the way postgres does.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func newTestServer(t *testing.T, sessions ingest.SessionStore) (*httptest.Server, *store.Repo) {
	t.Helper()
	repo := newTestRepo(t)
	if sessions == nil {
		sessions = repo
	}
	normalizer, err := ingest.NewNormalizer("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	hub := realtime.NewHub()
	pipeline := &ingest.Pipeline{Store: sessions, Notifier: hub, Normalizer: normalizer, DefaultBooth: 1}
	ts := httptest.NewServer(New(repo, pipeline, hub, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, repo
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode json: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	var payload any
	_ = json.NewDecoder(res.Body).Decode(&payload)
	return res, payload
}

func validScanBody() map[string]any {
	return map[string]any{
		"device_id":        "aa:bb:cc:dd:ee:ff",
		"rssi_values":      []int{-70, -55, -60, -50},
		"in_time":          1700000000,
		"out_time":         1700000120,
		"average_distance": 1.5,
	}
}

func TestIngestThenListRoundTrip(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	c := ts.Client()

	res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/api/scans", validScanBody())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("post status=%d payload=%v", res.StatusCode, payload)
	}
	resp := payload.(map[string]any)
	if resp["message"] != "stored" || resp["id"] == "" {
		t.Fatalf("unexpected response %v", resp)
	}

	res, payload = doJSON(t, c, http.MethodGet, ts.URL+"/api/scans", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status=%d payload=%v", res.StatusCode, payload)
	}
	rows := payload.([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 session, got %d", len(rows))
	}
	row := rows[0].(map[string]any)
	// Middle sample of [-70,-55,-60,-50].
	if row["user_retention"].(float64) != -60 {
		t.Fatalf("user_retention = %v", row["user_retention"])
	}
	if row["booth_id"].(float64) != 1 {
		t.Fatalf("booth_id = %v, want default 1", row["booth_id"])
	}
	if row["id"].(string) != resp["id"].(string) {
		t.Fatalf("id mismatch: %v vs %v", row["id"], resp["id"])
	}
	if !strings.HasSuffix(row["in_time"].(string), "+05:30") {
		t.Fatalf("in_time not normalized: %v", row["in_time"])
	}
}

func TestIngestMissingFieldsAllListed(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, payload := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/scans", map[string]any{
		"device_id": "aa:bb:cc:dd:ee:ff",
		"in_time":   1700000000,
		"out_time":  1700000120,
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d payload=%v", res.StatusCode, payload)
	}
	fields := payload.(map[string]any)
	for _, f := range []string{"rssi_values", "average_distance"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("expected %q in error body, got %v", f, fields)
		}
	}
}

func TestIngestNonJSONBody(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, err := ts.Client().Post(ts.URL+"/api/scans", "text/plain", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketBroadcastOnIngest(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dialWS(t, ts)

	res, payload := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/scans", validScanBody())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("post status=%d payload=%v", res.StatusCode, payload)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	var ev realtime.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v msg=%s", err, string(msg))
	}
	if ev.Type != realtime.EventDataUpdated {
		t.Fatalf("unexpected event type %q", ev.Type)
	}
	if ev.BoothID != 1 {
		t.Fatalf("unexpected booth %d", ev.BoothID)
	}
}

type downStore struct{}

func (downStore) Insert(context.Context, *store.Session) error {
	return errors.New("connection refused")
}

func TestStoreFailureReturns500AndStaysSilent(t *testing.T) {
	ts, repo := newTestServer(t, downStore{})
	conn := dialWS(t, ts)

	res, payload := doJSON(t, ts.Client(), http.MethodPost, ts.URL+"/api/scans", validScanBody())
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d payload=%v", res.StatusCode, payload)
	}
	body := payload.(map[string]any)
	if body["error"] == "" {
		t.Fatalf("expected error body, got %v", body)
	}

	// No broadcast may follow a failed write.
	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("unexpected broadcast after store failure")
	}

	rows, err := repo.List(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("failed record visible in read path: %d rows", len(rows))
	}
}

func TestConcurrentIngestYieldsDistinctRecords(t *testing.T) {
	ts, repo := newTestServer(t, nil)
	c := ts.Client()

	const n = 8
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/api/scans", validScanBody())
			if res.StatusCode != http.StatusCreated {
				t.Errorf("post status=%d payload=%v", res.StatusCode, payload)
				return
			}
			ids <- payload.(map[string]any)["id"].(string)
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != n {
		t.Fatalf("expected %d ids, got %d", n, len(seen))
	}

	rows, err := repo.List(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != n {
		t.Fatalf("expected %d rows, got %d", n, len(rows))
	}
}

func TestListBoothFilter(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	c := ts.Client()

	body := validScanBody()
	body["booth_id"] = 2
	if res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/api/scans", body); res.StatusCode != http.StatusCreated {
		t.Fatalf("post status=%d payload=%v", res.StatusCode, payload)
	}
	if res, payload := doJSON(t, c, http.MethodPost, ts.URL+"/api/scans", validScanBody()); res.StatusCode != http.StatusCreated {
		t.Fatalf("post status=%d payload=%v", res.StatusCode, payload)
	}

	res, payload := doJSON(t, c, http.MethodGet, ts.URL+"/api/scans?booth_id=2", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status=%d", res.StatusCode)
	}
	rows := payload.([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row for booth 2, got %d", len(rows))
	}

	res, _ = doJSON(t, c, http.MethodGet, ts.URL+"/api/scans?booth_id=zero", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad booth_id, got %d", res.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	res, payload := doJSON(t, ts.Client(), http.MethodGet, ts.URL+"/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if payload.(map[string]any)["ok"] != true {
		t.Fatalf("unexpected body %v", payload)
	}
}
