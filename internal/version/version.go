// Package version holds build metadata set with -ldflags.
package version

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/bnema/schedule-from-videos/internal/version.Version=v1.2.0" ./cmd/sfv
var Version = "dev"
