package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/j-veylop/rdio-stats/internal/metrics"
	"github.com/j-veylop/rdio-stats/internal/models"
	"github.com/j-veylop/rdio-stats/internal/stats"
	"github.com/j-veylop/rdio-stats/internal/talkgroups"
	"github.com/j-veylop/rdio-stats/internal/uploads"
)

var testNow = time.Date(2024, time.May, 1, 14, 7, 0, 0, time.Local)

// brokenBackend fails every store access.
type brokenBackend struct{}

func (brokenBackend) Ingest(_ context.Context, id string) (*stats.Result, error) {
	if strings.TrimSpace(id) == "" {
		return nil, stats.ErrIncomplete
	}
	return nil, errors.Join(stats.ErrStore, errors.New("disk I/O error"))
}

func (brokenBackend) Summary(context.Context) (*models.Summary, error) {
	return nil, errors.Join(stats.ErrStore, errors.New("disk I/O error"))
}

func (brokenBackend) Ping(context.Context) error {
	return errors.New("database is closed")
}

type fixture struct {
	store   *stats.MemoryStore
	spool   *uploads.Spool
	handler *Handler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := stats.NewMemoryStore()
	dir := talkgroups.New([]models.Talkgroup{
		{ID: "1001", DisplayName: "FIRE-DISPATCH", Category: "Fire"},
		{ID: "2002", DisplayName: "PD MAIN", Category: "Police"},
	})
	svc := stats.New(store, store, dir, stats.WithClock(func() time.Time { return testNow }))

	spool, err := uploads.New(filepath.Join(t.TempDir(), "tmp"))
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:   store,
		spool:   spool,
		handler: NewHandler(svc, spool, cfg),
	}
}

func multipartUpload(t *testing.T, fields map[string]string, attachments int) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < attachments; i++ {
		fw, err := mw.CreateFormFile("audio", "call.m4a")
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("fake-audio"))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/call-upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallUpload_Multipart(t *testing.T) {
	f := newFixture(t, Config{})
	before := testutil.ToFloat64(metrics.CallsIngested.WithLabelValues("Fire"))

	rec := serve(f.handler.UploadRouter(), multipartUpload(t, map[string]string{
		"talkgroup": "1001",
		"system":    "7",
	}, 2))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != MsgImported {
		t.Errorf("body = %q, want %q", rec.Body.String(), MsgImported)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request ID")
	}

	for _, key := range []string{
		"ALL",
		"TG:FIRE-DISPATCH|1001",
		"DAY:2024-05-01",
		"HOUR:14",
		"YEAR:2024",
		"TAG:Fire",
	} {
		if f.store.Count(key) != 1 {
			t.Errorf("counter %s = %d, want 1", key, f.store.Count(key))
		}
	}
	if f.store.Calls() != 1 {
		t.Errorf("ledger has %d calls, want 1", f.store.Calls())
	}

	entries, err := os.ReadDir(f.spool.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("spool still holds %d attachments", len(entries))
	}

	if got := testutil.ToFloat64(metrics.CallsIngested.WithLabelValues("Fire")); got != before+1 {
		t.Errorf("CallsIngested{Fire} = %v, want %v", got, before+1)
	}
}

func TestCallUpload_FormAndJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantKey     string
	}{
		{
			name:        "FormEncoded",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"talkgroup": {"2002"}}.Encode(),
			wantKey:     "TG:PD MAIN|2002",
		},
		{
			name:        "JSONString",
			contentType: "application/json",
			body:        `{"talkgroup":"1001","frequency":851012500}`,
			wantKey:     "TG:FIRE-DISPATCH|1001",
		},
		{
			name:        "JSONNumber",
			contentType: "application/json",
			body:        `{"talkgroup":2002}`,
			wantKey:     "TG:PD MAIN|2002",
		},
		{
			name:        "UnknownTalkgroup",
			contentType: "application/x-www-form-urlencoded",
			body:        "talkgroup=31337",
			wantKey:     "TG:31337|31337",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			req := httptest.NewRequest(http.MethodPost, "/api/call-upload", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			rec := serve(f.handler.UploadRouter(), req)
			if rec.Code != http.StatusOK || rec.Body.String() != MsgImported {
				t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
			}
			if f.store.Count(tt.wantKey) != 1 {
				t.Errorf("counter %s = %d, want 1", tt.wantKey, f.store.Count(tt.wantKey))
			}
		})
	}
}

func TestCallUpload_Incomplete(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"EmptyForm", "application/x-www-form-urlencoded", ""},
		{"BlankTalkgroup", "application/x-www-form-urlencoded", "talkgroup=+++"},
		{"MalformedJSON", "application/json", `{"talkgroup":`},
		{"JSONWithoutTalkgroup", "application/json", `{"source":12}`},
		{"BrokenMultipart", "multipart/form-data; boundary=nope", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			req := httptest.NewRequest(http.MethodPost, "/api/call-upload", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			rec := serve(f.handler.UploadRouter(), req)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != MsgIncomplete {
				t.Errorf("body = %q, want %q", rec.Body.String(), MsgIncomplete)
			}
			if entries, _ := f.store.ReadAll(context.Background()); len(entries) != 0 {
				t.Errorf("incomplete upload wrote %d counters", len(entries))
			}
			if f.store.Calls() != 0 {
				t.Error("incomplete upload appended to the ledger")
			}
		})
	}
}

func TestCallUpload_StoreFailure(t *testing.T) {
	h := NewHandler(brokenBackend{}, nil, Config{})

	rec := serve(h.UploadRouter(), multipartUpload(t, map[string]string{"talkgroup": "1001"}, 1))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body.Error == "" {
		t.Error("error body should carry a message")
	}
}

func TestCallUpload_APIKey(t *testing.T) {
	f := newFixture(t, Config{APIKey: "s3cret"})
	router := f.handler.UploadRouter()

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"Missing", "", http.StatusForbidden},
		{"Wrong", "guess", http.StatusForbidden},
		{"Valid", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartUpload(t, map[string]string{"talkgroup": "1001"}, 0)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := serve(router, req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusForbidden {
				if strings.TrimSpace(rec.Body.String()) != `{"error":"Invalid API key"}` {
					t.Errorf("body = %q", rec.Body.String())
				}
			}
		})
	}

	if f.store.Count("ALL") != 1 {
		t.Errorf("ALL = %d, want 1 (only the valid upload counts)", f.store.Count("ALL"))
	}

	// Health stays reachable without a key.
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

func TestCallUpload_RateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimit: 2})
	router := f.handler.UploadRouter()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := multipartUpload(t, map[string]string{"talkgroup": "1001"}, 0)
		req.RemoteAddr = "192.0.2.10:5000"
		codes = append(codes, serve(router, req).Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	svc := stats.New(f.store, f.store, talkgroups.New([]models.Talkgroup{
		{ID: "1001", DisplayName: "FIRE-DISPATCH", Category: "Fire"},
	}), stats.WithClock(func() time.Time { return testNow }))
	if _, err := svc.Ingest(ctx, "1001"); err != nil {
		t.Fatal(err)
	}

	rec := serve(f.handler.QueryRouter(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	var got struct {
		Total      int64            `json:"total"`
		Today      int64            `json:"today"`
		Week       int64            `json:"week"`
		Year       int64            `json:"year"`
		Talkgroups map[string]int64 `json:"talkgroups"`
		Hours      []int64          `json:"hours"`
		LastCall   *struct {
			Alpha   string `json:"alpha"`
			Decimal string `json:"decimal"`
			Time    int64  `json:"time"`
		} `json:"lastCall"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if got.Total != 1 || got.Today != 1 || got.Week != 1 || got.Year != 1 {
		t.Errorf("totals = %+v", got)
	}
	if got.Talkgroups["FIRE-DISPATCH|1001"] != 1 {
		t.Errorf("talkgroups = %v", got.Talkgroups)
	}
	if len(got.Hours) != 24 || got.Hours[14] != 1 {
		t.Errorf("hours = %v", got.Hours)
	}
	if got.LastCall == nil || got.LastCall.Alpha != "FIRE-DISPATCH" || got.LastCall.Decimal != "1001" ||
		got.LastCall.Time != testNow.UnixMilli() {
		t.Errorf("lastCall = %+v", got.LastCall)
	}
}

func TestStats_EmptyHasNullLastCall(t *testing.T) {
	f := newFixture(t, Config{})

	rec := serve(f.handler.QueryRouter(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if v, ok := got["lastCall"]; ok && v != nil {
		t.Errorf("lastCall = %v, want null or absent", v)
	}
	if got["total"] != float64(0) {
		t.Errorf("total = %v, want 0", got["total"])
	}
}

func TestHourlyAndTalkgroups(t *testing.T) {
	f := newFixture(t, Config{})
	router := f.handler.UploadRouter()
	for _, id := range []string{"1001", "2002", "2002"} {
		serve(router, multipartUpload(t, map[string]string{"talkgroup": id}, 0))
	}
	query := f.handler.QueryRouter()

	rec := serve(query, httptest.NewRequest(http.MethodGet, "/api/stats/hourly", nil))
	var hourly []models.HourCount
	if err := json.Unmarshal(rec.Body.Bytes(), &hourly); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(hourly) != 24 || hourly[14].Calls != 3 {
		t.Errorf("hourly = %+v", hourly)
	}

	rec = serve(query, httptest.NewRequest(http.MethodGet, "/api/stats/talkgroups?limit=1", nil))
	var top []models.TalkgroupCount
	if err := json.Unmarshal(rec.Body.Bytes(), &top); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(top) != 1 || top[0].ID != "2002" || top[0].Calls != 2 {
		t.Errorf("talkgroups = %+v", top)
	}

	rec = serve(query, httptest.NewRequest(http.MethodGet, "/api/stats/talkgroups?limit=-3", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestQuery_StoreFailure(t *testing.T) {
	router := NewHandler(brokenBackend{}, nil, Config{}).QueryRouter()

	for _, path := range []string{"/api/stats", "/api/stats/hourly", "/api/stats/talkgroups"} {
		rec := serve(router, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", path, rec.Code)
		}
	}

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503", rec.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		f := newFixture(t, Config{NotifyEnabled: enabled})
		rec := serve(f.handler.QueryRouter(), httptest.NewRequest(http.MethodGet, "/api/config", nil))

		var got configResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Notify.Enabled != enabled {
			t.Errorf("notify.enabled = %v, want %v", got.Notify.Enabled, enabled)
		}
	}
}

func TestQueryRouter_StaticAndMetrics(t *testing.T) {
	public := t.TempDir()
	if err := os.WriteFile(filepath.Join(public, "index.html"), []byte("<h1>dashboard</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, Config{PublicDir: public})
	router := f.handler.QueryRouter()

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dashboard") {
		t.Errorf("static index = %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "rdio_http_requests_total") {
		t.Errorf("metrics endpoint = %d", rec.Code)
	}
}

func TestQueryRouter_CORS(t *testing.T) {
	f := newFixture(t, Config{CORSOrigins: []string{"https://dash.example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Origin", "https://dash.example.org")
	rec := serve(f.handler.QueryRouter(), req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.org" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	f := newFixture(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")

	rec := serve(f.handler.UploadRouter(), req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want upstream value", got)
	}
}

func TestTalkgroupValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"1001", "1001"},
		{float64(2002), "2002"},
		{nil, ""},
		{true, ""},
	}
	for _, tt := range tests {
		if got := talkgroupValue(tt.in); got != tt.want {
			t.Errorf("talkgroupValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
