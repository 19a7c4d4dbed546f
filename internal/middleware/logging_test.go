package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/takibi/internal/model"
)

// --- ヘルパー ---

// captureLog はバッファに書き込むJSONロガーを返す。
func captureLog() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, nil)), buf
}

// lastLogEntry はバッファ末尾のログ行をパースして返す。
func lastLogEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) == 0 || len(lines[len(lines)-1]) == 0 {
		t.Fatal("expected at least one log line")
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	return entry
}

// --- テスト ---

func TestLoggingMiddleware_RecordsRequestFields(t *testing.T) {
	logger, buf := captureLog()

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/campgrounds", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := lastLogEntry(t, buf)
	if entry["method"] != "POST" {
		t.Errorf("method = %v, want POST", entry["method"])
	}
	if entry["path"] != "/campgrounds" {
		t.Errorf("path = %v, want /campgrounds", entry["path"])
	}
	if entry["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want %d", entry["status"], http.StatusCreated)
	}
}

func TestLoggingMiddleware_IncludesUserIDResolvedBySessionMiddleware(t *testing.T) {
	logger, buf := captureLog()

	store := newFakeSessionStore()
	store.sessions["sess-1"] = &model.Session{UserID: "user-1", CreatedAt: time.Now()}
	users := &fakeUserFinder{users: map[string]*model.User{
		"user-1": {ID: "user-1", Username: "alice"},
	}}
	m := newTestManager(store, users)

	// 本番のルーターと同じく、ロギングはセッションより外側に積む
	handler := NewLoggingMiddleware(logger)(m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := lastLogEntry(t, buf)
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
}

func TestLoggingMiddleware_AnonymousRequestOmitsUserID(t *testing.T) {
	logger, buf := captureLog()

	store := newFakeSessionStore()
	m := newTestManager(store, nil)

	handler := NewLoggingMiddleware(logger)(m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := lastLogEntry(t, buf)
	if _, ok := entry["user_id"]; ok {
		t.Errorf("anonymous request should not carry user_id, got %v", entry["user_id"])
	}
}

func TestLoggingMiddleware_LoginSwapRecordsNewUserID(t *testing.T) {
	logger, buf := captureLog()

	store := newFakeSessionStore()
	store.sessions["anon-sess"] = &model.Session{CreatedAt: time.Now()}
	m := newTestManager(store, nil)

	authed := &model.Session{ID: "authed-sess", UserID: "user-1", CreatedAt: time.Now()}
	store.sessions["authed-sess"] = authed

	// ログインハンドラー相当: 匿名セッションを認証済みセッションに差し替える
	handler := NewLoggingMiddleware(logger)(m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Swap(w, r, authed)
		w.WriteHeader(http.StatusFound)
	})))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "anon-sess"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entry := lastLogEntry(t, buf)
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want user-1", entry["user_id"])
	}
}
