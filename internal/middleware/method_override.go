package middleware

import "net/http"

// methodOverrideField はHTMLフォームからPUT/DELETEを表現するための隠しフィールド名。
const methodOverrideField = "_method"

// NewMethodOverrideMiddleware はPOSTリクエストの_methodフィールドによる
// HTTPメソッドの上書きを行うミドルウェアを返す。
// HTMLフォームはGET/POSTしか送信できないため、PUT/DELETEは
// POST + _methodフィールドで表現する。
func NewMethodOverrideMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				// multipartフォームの場合もPostFormValueがパースする
				switch r.PostFormValue(methodOverrideField) {
				case http.MethodPut:
					r.Method = http.MethodPut
				case http.MethodDelete:
					r.Method = http.MethodDelete
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
