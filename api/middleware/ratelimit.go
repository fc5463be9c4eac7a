package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/skillhive/skillhive/api/web"
	"github.com/skillhive/skillhive/api/weberr"
	"github.com/skillhive/skillhive/rate"
)

// RateLimit rejects clients exceeding the per-IP budget of the limiter.
// Applied to the credential endpoints to slow brute forcing.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !lim.Check(ip) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
