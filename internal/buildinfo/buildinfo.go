package buildinfo

// Injected at build time via -ldflags, e.g.:
//
//	-X github.com/serviapp/marketplace/internal/buildinfo.Version=v0.0.0
//	-X github.com/serviapp/marketplace/internal/buildinfo.Commit=abcdef
//	-X github.com/serviapp/marketplace/internal/buildinfo.Date=2026-08-30
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
