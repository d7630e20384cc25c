package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/dealer-iam/internal/platform/httpx"
	"github.com/noah-isme/dealer-iam/internal/shared"
)

// ClientKey identifies the caller by remote IP. Run chi's RealIP first when
// the service sits behind a proxy.
func ClientKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientKey(r)
		if l.Allow(key) {
			next.ServeHTTP(w, r)
			return
		}
		retry := int(l.cfg.Window.Seconds())
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		err := shared.NewError(shared.ErrTooManyRequests,
			"too many requests to %s from %s, retry after %d milliseconds", r.URL.Path, key, l.cfg.Window.Milliseconds())
		l.logger.Warn("rate limit exceeded", slog.String("path", r.URL.Path), slog.String("client", key))
		httpx.RespondError(w, r, nil, err)
	})
}
