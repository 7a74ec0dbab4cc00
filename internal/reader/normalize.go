package reader

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reNBSP       = regexp.MustCompile("\u00a0+")
)

// normalizeLines collapses tabs and repeated spaces, splits embedded newlines and drops blank lines.
func normalizeLines(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		l = reCRLF.ReplaceAllString(l, "\n")
		for _, part := range strings.Split(l, "\n") {
			part = reNBSP.ReplaceAllString(part, " ")
			part = reTabs.ReplaceAllString(part, " ")
			part = reMultiSpace.ReplaceAllString(part, " ")
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

