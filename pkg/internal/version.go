package internal

import (
	"runtime/debug"
	"strings"
)

const (
	_moduleName     = "github.com/osvaldn/go-httpcore"
	_unknownVersion = "v0.0.0-unknown"
)

// Version is the module version as seen by the consuming binary's build
// info, or a placeholder when built outside module mode.
var Version = func() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, dep := range bi.Deps {
			if strings.EqualFold(dep.Path, _moduleName) {
				return dep.Version
			}
		}
	}

	return _unknownVersion
}()
