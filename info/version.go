// Package info reports the version of the build.
package info

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
)

// ModulePath is the import path of this module.
const ModulePath = "github.com/safing/deltatx"

var (
	version = "dev build"

	info     *Info
	loadInfo sync.Once
)

// Info holds the build information.
type Info struct {
	Version   string
	GoVersion string

	Commit     string
	CommitTime string
	Dirty      bool
}

// GetInfo returns the build information. The version of the module is read
// from the build info when it is used as a dependency.
func GetInfo() *Info {
	loadInfo.Do(func() {
		info = &Info{
			Version:   version,
			GoVersion: runtime.Version(),
		}

		buildInfo, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		info.Version = moduleVersion(buildInfo)
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Commit = setting.Value
			case "vcs.time":
				info.CommitTime = setting.Value
			case "vcs.modified":
				info.Dirty = setting.Value == "true"
			}
		}
	})

	return info
}

func moduleVersion(buildInfo *debug.BuildInfo) string {
	if buildInfo.Main.Path == ModulePath && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if dep.Path == ModulePath {
			return dep.Version
		}
	}
	return version
}

// Version returns the short version string.
func Version() string {
	info := GetInfo()

	if info.Dirty {
		return info.Version + "*"
	}
	return info.Version
}

// FullVersion returns the full and detailed version string.
func FullVersion() string {
	info := GetInfo()
	builder := new(strings.Builder)

	builder.WriteString(fmt.Sprintf("deltatx %s\n", Version()))
	builder.WriteString(fmt.Sprintf("built with %s (%s) %s/%s\n", info.GoVersion, runtime.Compiler, runtime.GOOS, runtime.GOARCH))
	if info.Commit != "" {
		builder.WriteString(fmt.Sprintf("commit %s\n", info.Commit))
		builder.WriteString(fmt.Sprintf("  at %s\n", info.CommitTime))
	}

	return builder.String()
}
