package search

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Package is one entry of a libraries.io search response
type Package struct {
	Name                     string `json:"name"`
	Description              string `json:"description"`
	Homepage                 string `json:"homepage"`
	Language                 string `json:"language"`
	LatestReleaseNumber      string `json:"latest_release_number"`
	LatestReleasePublishedAt string `json:"latest_release_published_at"`
	Stars                    int64  `json:"stars"`
}

// FormatPackages renders packages as a markdown list, one per line, each
// line starting with a newline:
//
//	- **name** (language, 1,234 stars): description (homepage)
func FormatPackages(packages []Package) string {
	var sb strings.Builder
	for _, p := range packages {
		sb.WriteString("\n- **")
		sb.WriteString(p.Name)
		sb.WriteString("**")

		if p.Language != "" && p.Stars > 0 {
			fmt.Fprintf(&sb, " (%s, %s)", p.Language, stars(p.Stars))
		}

		sb.WriteString(": ")
		sb.WriteString(p.Description)

		if p.Homepage != "" {
			fmt.Fprintf(&sb, " (%s)", p.Homepage)
		}
	}
	return sb.String()
}

func stars(n int64) string {
	if n == 1 {
		return "1 star"
	}
	return humanize.Comma(n) + " stars"
}
