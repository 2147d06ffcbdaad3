package parse

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reLineBreaks = regexp.MustCompile(`\r\n?`)
	reHSpace     = regexp.MustCompile(`[ \t]+`)
	reAnySpace   = regexp.MustCompile(`\s+`)
	reColumnGap  = regexp.MustCompile(`[ \t]{2,}`)
)

// document holds the prepared views of one input text. raw and upper share
// byte offsets; flat is for keyword scans only.
type document struct {
	raw   string
	upper string
	flat  string
}

func prepare(text string) document {
	s := norm.NFKC.String(text)
	s = reLineBreaks.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\t", "  ")
	up := asciiUpper(s)
	return document{
		raw:   s,
		upper: up,
		flat:  strings.TrimSpace(reAnySpace.ReplaceAllString(up, " ")),
	}
}

// asciiUpper uppercases a-z only so byte offsets survive.
func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// collapse folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.TrimSpace(reHSpace.ReplaceAllString(s, " "))
}
