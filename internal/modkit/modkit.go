package modkit

import (
	phttp "poshub/internal/platform/net/http"
)

// Module is what the api composer mounts: routes under /api/v1, a port bundle for the registry, and a name
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
