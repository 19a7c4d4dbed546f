package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:  rate.Limit(1),
		GeneralBurst: 3,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
		req.RemoteAddr = "192.0.2.1:50000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestGeneralMiddleware_RejectsWhenBurstExhausted(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:  rate.Limit(0.001), // 補充をほぼ止める
		GeneralBurst: 2,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
		req.RemoteAddr = "192.0.2.1:50000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	req.RemoteAddr = "192.0.2.1:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGeneralMiddleware_LimitsPerIP(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:  rate.Limit(0.001),
		GeneralBurst: 1,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	// 1つ目のIPのバーストを使い切る
	req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	req.RemoteAddr = "192.0.2.1:50000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// 別のIPには影響しないこと
	req2 := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	req2.RemoteAddr = "192.0.2.2:50000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for a different IP", rec.Code)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("limiter count = %d, want 2", got)
	}
}

func TestAuthMiddleware_IndependentFromGeneral(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:  rate.Limit(0.001),
		GeneralBurst: 1,
		AuthRate:     rate.Limit(0.001),
		AuthBurst:    1,
	})
	general := rl.GeneralMiddleware()(okHandler())
	auth := rl.AuthMiddleware()(okHandler())

	// 認証リミッターを使い切ってもサイト全般には影響しないこと
	authReq := httptest.NewRequest(http.MethodPost, "/login", nil)
	authReq.RemoteAddr = "192.0.2.1:50000"
	auth.ServeHTTP(httptest.NewRecorder(), authReq)

	authReq2 := httptest.NewRequest(http.MethodPost, "/login", nil)
	authReq2.RemoteAddr = "192.0.2.1:50000"
	authRec := httptest.NewRecorder()
	auth.ServeHTTP(authRec, authReq2)
	if authRec.Code != http.StatusTooManyRequests {
		t.Errorf("auth status = %d, want 429", authRec.Code)
	}

	generalReq := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	generalReq.RemoteAddr = "192.0.2.1:50000"
	generalRec := httptest.NewRecorder()
	general.ServeHTTP(generalRec, generalReq)
	if generalRec.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", generalRec.Code)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	rl := newTestRateLimiter(t, RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		CleanupInterval: time.Millisecond,
	})
	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/campgrounds", nil)
	req.RemoteAddr = "192.0.2.1:50000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := rl.GeneralLimiterCount(); got != 1 {
		t.Fatalf("limiter count = %d, want 1", got)
	}

	// TTL（CleanupInterval×2）経過後にエントリが削除されること
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expected stale limiter entry to be cleaned up")
}
