package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Timeout 给普通请求的 ctx 加超时, 推送接口是长连接, 不受限制
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isStream(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isStream(path string) bool {
	return strings.HasPrefix(path, "/ws/") || strings.HasSuffix(path, "/stream")
}
