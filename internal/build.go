package internal

import (
	"runtime/debug"
	"time"
)

// Build information read from the VCS stamp of the binary. Falls back
// to "unknown" when the binary was built without VCS information.
var (
	BuildRevision      = "unknown"
	BuildRevisionTime  = time.Time{}
	BuildLocalModified = "unknown"
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			BuildRevision = setting.Value
		case "vcs.time":
			t, err := time.Parse(time.RFC3339, setting.Value)
			if err != nil {
				continue
			}
			BuildRevisionTime = t
		case "vcs.modified":
			BuildLocalModified = setting.Value
		}
	}
}

// ShortRevision returns the first 7 characters of the build revision,
// used for cache busting static assets.
func ShortRevision() string {
	if len(BuildRevision) > 7 {
		return BuildRevision[:7]
	}
	return BuildRevision
}
