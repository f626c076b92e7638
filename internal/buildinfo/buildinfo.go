package buildinfo

// Injected at build time via -ldflags:
//
//	-X vodfetch/internal/buildinfo.Version=v0.1.0
//	-X vodfetch/internal/buildinfo.Commit=abcdef
//	-X vodfetch/internal/buildinfo.Date=2026-08-30
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}
