// version/version.go
package version

import (
	"net/http"
	"runtime"

	"github.com/markeidelman/clinicweb/httputil"
	"go.uber.org/zap"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/markeidelman/clinicweb/pantry/version.Version=1.4.0 \
//	                   -X github.com/markeidelman/clinicweb/pantry/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build description served at /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build info.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// Fields returns the build info as log fields for the startup line.
func Fields() []zap.Field {
	i := Get()
	return []zap.Field{
		zap.String("version", i.Version),
		zap.String("commit", i.Commit),
		zap.String("build_time", i.BuildTime),
		zap.String("go", i.GoVersion),
	}
}

// Handler responds with Get() as JSON.
func Handler() http.Handler {
	info := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	})
}

// String returns "dev" or "1.4.0 (abc123, built 2026-01-15T10:30:00Z)".
func String() string {
	if Version == "dev" {
		return "dev"
	}
	return Version + " (" + Commit + ", built " + BuildTime + ")"
}
