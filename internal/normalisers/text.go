// Package normalisers cleans extracted document text before it is packed
// into a model context block.
package normalisers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalRuns = regexp.MustCompile(`[ \t]{2,}`)
	newlineRuns    = regexp.MustCompile(`\n{3,}`)
)

// TextNormaliser applies an ordered sequence of cleanup steps to fragment
// text: Unicode NFKC normalisation, control character stripping (newlines
// and tabs survive), horizontal whitespace collapsing, and capping
// consecutive newlines at two.
type TextNormaliser struct {
	steps []func(string) string
}

// NewTextNormaliser creates a normaliser with the default step order.
func NewTextNormaliser() *TextNormaliser {
	return &TextNormaliser{
		steps: []func(string) string{
			normaliseUnicode,
			stripControl,
			collapseHorizontal,
			collapseNewlines,
			strings.TrimSpace,
		},
	}
}

// Normalise runs all steps in order.
func (n *TextNormaliser) Normalise(s string) string {
	for _, step := range n.steps {
		s = step(s)
	}
	return s
}

func normaliseUnicode(s string) string {
	return norm.NFKC.String(s)
}

// stripControl removes control characters but keeps newlines and tabs,
// which carry document structure.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func collapseHorizontal(s string) string {
	return horizontalRuns.ReplaceAllString(s, " ")
}

func collapseNewlines(s string) string {
	return newlineRuns.ReplaceAllString(s, "\n\n")
}
