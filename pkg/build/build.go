package build

import (
	"fmt"
	"runtime"

	"github.com/prometheus/common/version"
)

// Version information passed to Prometheus version package.
// Package path as used by linker changes based on vendoring being used or not,
// so it's easier just to use stable exporter path, and pass it to
// Prometheus in the code.
var (
	Version   string
	Revision  string
	Branch    string
	BuildUser string
	BuildDate string
)

// settable by tests
var goos = runtime.GOOS

func init() {
	version.Version = Version
	version.Revision = Revision
	version.Branch = Branch
	version.BuildUser = BuildUser
	version.BuildDate = BuildDate
}

// UserAgent returns the name the exporter announces itself with, e.g. as the
// MongoDB application name.
func UserAgent() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	return fmt.Sprintf("CollstatsExporter/%s (%s)", v, goos)
}
