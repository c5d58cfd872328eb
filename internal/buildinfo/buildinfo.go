// Package buildinfo exposes version metadata stamped at link time:
//
//	go build -ldflags "-X github.com/EiDHindY/vaulture/internal/buildinfo.Version=v1.2.0 \
//	  -X github.com/EiDHindY/vaulture/internal/buildinfo.Date=2026-01-02 \
//	  -X github.com/EiDHindY/vaulture/internal/buildinfo.Commit=abc123"
package buildinfo

import (
	"fmt"
	"io"
)

const notAvailable = "N/A"

var (
	Version string
	Date    string
	Commit  string
)

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// PrintBuildData writes the build banner to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(Version))
	fmt.Fprintf(w, "Build date: %s\n", orNA(Date))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(Commit))
}
