package middleware

import "net/http"

// NewBodyLimitMiddleware はリクエストボディのサイズ上限を適用するミドルウェアを返す。
// 画像アップロードを含むフォーム送信の上限として使用する。
// 上限を超えた読み取りはhttp.MaxBytesErrorになり、フォームのパースが失敗する。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
