package version

import (
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X" by the release build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const unset = "unknown"

// Info is the build information served on /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get reports the build. Values not injected at link time are taken from the
// VCS stamp the toolchain embeds, when there is one.
func Get() Info {
	return resolve(vcsSettings())
}

func resolve(vcs map[string]string) Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime, GoVersion: runtime.Version()}
	if info.Commit == unset && vcs["vcs.revision"] != "" {
		info.Commit = vcs["vcs.revision"]
		if vcs["vcs.modified"] == "true" {
			info.Commit += "-dirty"
		}
	}
	if info.BuildTime == unset && vcs["vcs.time"] != "" {
		info.BuildTime = vcs["vcs.time"]
	}
	return info
}

func vcsSettings() map[string]string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for _, s := range bi.Settings {
		out[s.Key] = s.Value
	}
	return out
}
