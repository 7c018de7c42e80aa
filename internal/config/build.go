package config

// Build metadata stamped at release. cmd/api logs it at startup and the
// remote forecaster reports Version as its model version:
//
//	go build -ldflags "-X courtwind/internal/config.version=1.2.3 \
//	    -X courtwind/internal/config.commit=$(git rev-parse --short HEAD)" ./cmd/api
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the stamped build metadata, or the dev defaults for a
// plain go build.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
