// Package selector builds format selector expressions for the extraction engine.
package selector

import (
	"strconv"
	"strings"
)

// BestAvailable is the canonical "best video plus best audio, else best
// combined stream" expression.
const BestAvailable = "bestvideo*+bestaudio/best"

const (
	altSep     = "/"
	combineSep = "+"
	best       = "best"
)

// Build turns a quality preference and an optional height cap into a selector
// expression. A resolution of zero or less means no cap. Audio-only selectors
// are never capped.
func Build(quality string, resolution int) string {
	base := strings.TrimSpace(quality)
	if base == "" || base == best {
		base = BestAvailable
	}

	if resolution <= 0 {
		return base
	}
	limit := heightCap(resolution)

	if base == BestAvailable {
		return "bestvideo*" + limit + "+bestaudio/best" + limit + "/best"
	}

	if !strings.Contains(base, combineSep) && !strings.Contains(base, altSep) {
		if isAudio(base) {
			return base
		}
		return base + limit + altSep + best
	}

	alts := strings.Split(base, altSep)
	for i, alt := range alts {
		sels := strings.Split(alt, combineSep)
		for j, sel := range sels {
			if isVideoBiased(sel) && !isAudio(sel) {
				sels[j] = sel + limit
			}
		}
		alts[i] = strings.Join(sels, combineSep)
	}
	return strings.Join(alts, altSep) + altSep + best
}

func heightCap(resolution int) string {
	return "[height<=?" + strconv.Itoa(resolution) + "]"
}

func isAudio(sel string) bool {
	return strings.Contains(sel, "audio") || sel == "ba" || sel == "bestaudio"
}

func isVideoBiased(sel string) bool {
	return strings.Contains(sel, "bestvideo") || strings.Contains(sel, "bv") || strings.Contains(sel, best)
}
