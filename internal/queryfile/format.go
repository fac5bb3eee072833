// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package queryfile

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdiddy/oafetch/internal/legality"
	"github.com/pdiddy/oafetch/pkg/types"
)

// FormatTable writes matches as a fixed-width table.
func FormatTable(matches []types.MatchResult, w io.Writer) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matching papers.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-12s  %s\n",
		"Dist", "Title", "Authors", "Year", "Access", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 118))

	for _, m := range matches {
		year := ""
		if m.Paper.Year != nil {
			year = strconv.Itoa(*m.Paper.Year)
		}
		access := "open"
		if reason, withheld := legality.Reason(m.Paper); withheld {
			access = string(reason)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-12s  %s\n",
			m.Distance, truncate(m.Paper.Title, 60), formatAuthors(m.Paper.Authors), year, access, m.Paper.SourceName)
	}

	fmt.Fprintf(w, "\n%d matches\n", len(matches))
}

// FormatJSON writes matches as indented JSON.
func FormatJSON(matches []types.MatchResult, w io.Writer) error {
	if matches == nil {
		matches = []types.MatchResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(matches)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
