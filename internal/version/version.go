// Where: internal/version/version.go
// What: Build version information retrieval.
// Why: Startup logs name the deployed revision for traceability.
package version

import "runtime/debug"

// String returns the VCS revision baked into the binary, shortened to
// seven characters, with a "-dirty" suffix when the tree was modified.
// Binaries built outside version control report "dev".
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	revision, dirty := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return "dev"
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if dirty {
		return revision + "-dirty"
	}
	return revision
}
