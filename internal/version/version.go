package version

import (
	"runtime"
	"runtime/debug"
)

var version = "dev"

// Version returns the current version string
func Version() string {
	return version
}

// Info contains build information for the version command.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"goVersion"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// GetInfo returns version details embedded by the Go toolchain.
func GetInfo() Info {
	info := Info{
		Version:   version,
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}
