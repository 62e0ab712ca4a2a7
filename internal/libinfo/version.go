/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports the version of the quotakit module the binary was built with.
package libinfo

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"
)

const moduleName = "github.com/acronis/go-quotakit"

const unknownVersion = "v0.0.0"

var (
	version     string
	versionOnce sync.Once
)

// Version returns the module version, or v0.0.0 for local builds.
func Version() string {
	versionOnce.Do(func() {
		if info, ok := debug.ReadBuildInfo(); ok {
			version = extractVersion(info, moduleName)
		}
		if version == "" || version == "(devel)" {
			version = unknownVersion
		}
	})
	return version
}

// UserAgent returns the User-Agent value for outgoing requests, e.g. "quotakit/v1.2.0".
func UserAgent() string {
	return "quotakit/" + Version()
}

// extractVersion looks for modName (or its major version path) in the main module first and then in dependencies.
func extractVersion(info *buildinfo.BuildInfo, modName string) string {
	if info == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(info.Main.Path) {
		return info.Main.Version
	}
	for _, dep := range info.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
