package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// requestUserHolder はロギングミドルウェアが内側のセッションミドルウェアから
// 解決済みユーザーIDを受け取るための入れ物。context.WithValueで外側に
// 値を戻すことはできないため、外側が空の入れ物を仕込み、内側が書き込む。
type requestUserHolder struct {
	userID string
}

const requestUserContextKey = contextKey("request_user")

// setRequestUserID はコンテキストに入れ物があればユーザーIDを書き込む。
// 入れ物がない場合（ロギングミドルウェアの外で呼ばれた場合）は何もしない。
func setRequestUserID(ctx context.Context, userID string) {
	if holder, ok := ctx.Value(requestUserContextKey).(*requestUserHolder); ok {
		holder.userID = userID
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、remote_addr、
// user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			holder := &requestUserHolder{}
			ctx := context.WithValue(r.Context(), requestUserContextKey, holder)

			next.ServeHTTP(rec, r.WithContext(ctx))

			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
				slog.String("remote_addr", clientIP(r)),
			}

			// セッションミドルウェアがユーザーを解決済みの場合はIDを付ける
			if holder.userID != "" {
				attrs = append(attrs, slog.String("user_id", holder.userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
