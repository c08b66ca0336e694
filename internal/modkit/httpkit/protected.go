package httpkit

import (
	"poshub/internal/platform/net/middleware"
)

// Protected groups routes under bearer auth
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(Auth(p))
		fn(gr)
	})
}

// Scoped is Protected with a gate and one required scope
func Scoped(r Router, gate Authorizer, scope string, fn func(Router)) {
	Protected(r, RequireScope(gate, scope), fn)
}
