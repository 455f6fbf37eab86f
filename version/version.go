// Package version reports which build of steelpan is running.
package version

import (
	"runtime/debug"
	"strings"
)

// Version can be set at build time:
// go build -ldflags "-X github.com/panyard/steelpan/version.Version=$(git describe --dirty)"
var Version string

// Hash is the short vcs revision the binary was built from, with "-dirty"
// appended if the work tree had local changes.
var Hash = revision()

func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return shortRevision(rev, dirty)
}

func shortRevision(rev string, dirty bool) string {
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}

// VersionOrHash is Version if it was set, otherwise Hash.
var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

// String is the line printed by the -v flag of the commands.
func String(program string) string {
	v := VersionOrHash
	if v == "" {
		v = "(devel)"
	}
	return strings.TrimSpace(program + " " + v)
}
