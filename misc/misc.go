// Package misc holds build time information about the program.
package misc

import (
	"runtime/debug"
	"strings"
	"sync"
)

// Set by linker: -ldflags "-X mqwatch/misc.version=... -X mqwatch/misc.gitHash=..."
var (
	version = "dev"
	gitHash = ""
	appName = "mqw"
)

var readBuildInfo = sync.OnceValue(func() *debug.BuildInfo {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return bi
})

// GetAppName returns short program name used for logger naming and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if bi := readBuildInfo(); bi != nil && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return strings.TrimPrefix(bi.Main.Version, "v")
	}
	return version
}

// GetGitHash returns VCS revision program was built from if known.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi := readBuildInfo(); bi != nil {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
