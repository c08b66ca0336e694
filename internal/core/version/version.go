// Package version provides information about the build version of the service.
package version

// BuildInfo holds version information about the service build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information. The variables below are set at build time:
//
//	-ldflags "-X 'poshub/internal/core/version.version=v0.1.0' -X 'poshub/internal/core/version.commit=abcd'"
func Info() BuildInfo {
	return BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// SetService names the running binary in Info
func SetService(name string) {
	if name != "" {
		service = name
	}
}

var (
	service = "poshub"
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
