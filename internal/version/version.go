// Package version exposes build metadata for tablesocket.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rickgao/tablesocket/internal/version.Version=0.3.0 \
//	                   -X github.com/rickgao/tablesocket/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "runtime/debug"

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the short git hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String returns a one-line description suitable for -version output.
func String() string {
	commit := Commit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return "tablesocket " + Version + " (" + commit + ") built " + BuildTime
}

// UserAgent is sent on the socket handshake.
func UserAgent() string {
	return "tablesocket/" + Version
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}
