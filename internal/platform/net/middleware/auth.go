package middleware

import (
	"net/http"

	perr "poshub/internal/platform/errors"
	"poshub/internal/platform/logger"
	pnet "poshub/internal/platform/net"
)

// AuthPort decides whether a request may proceed and who is calling
type AuthPort interface {
	Check(r *http.Request) (pnet.Principal, error)
}

// AuthFunc adapts a function to AuthPort
type AuthFunc func(r *http.Request) (pnet.Principal, error)

// Check calls f
func (f AuthFunc) Check(r *http.Request) (pnet.Principal, error) { return f(r) }

// Auth guards next with p. It fails closed: a nil port, an error or an empty subject
// all stop the request. Failures are written through write; 401s carry a Bearer challenge
func Auth(p AuthPort, write func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				who pnet.Principal
				err error
			)
			if p == nil {
				err = perr.Unauthorizedf("unauthorized")
			} else {
				who, err = p.Check(r)
				if err == nil && who.Subject == "" {
					err = perr.Unauthorizedf("unauthorized")
				}
			}
			if err != nil {
				if perr.IsCode(err, perr.ErrorCodeUnauthorized) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="poshub"`)
				}
				write(w, r, err)
				return
			}
			ctx := pnet.WithPrincipal(r.Context(), who)
			ctx = logger.WithSubject(ctx, who.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
