package httpkit

import (
	"net/http"

	perrs "poshub/internal/platform/errors"
	pnet "poshub/internal/platform/net"
)

// Caller returns the authenticated principal from the request context
func Caller(r *http.Request) (pnet.Principal, error) {
	p, ok := pnet.PrincipalFrom(r.Context())
	if !ok {
		return pnet.Principal{}, perrs.Unauthorizedf("unauthorized")
	}
	return p, nil
}

// MustCaller returns the principal or panics
// only use on routes protected by the auth middleware
func MustCaller(r *http.Request) pnet.Principal {
	p, err := Caller(r)
	if err != nil {
		panic(err)
	}
	return p
}
