package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "section": true, "table": true, "tr": true,
	"ul": true,
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// innerText approximates what a browser renders for sel: block elements
// and <br> break lines, runs of spaces collapse, blank lines are dropped.
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, s *goquery.Selection) {
		writeText(&b, s)
	})

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(b *strings.Builder, s *goquery.Selection) {
	name := goquery.NodeName(s)
	switch {
	case name == "#text":
		b.WriteString(lineBreaks.Replace(s.Text()))
		return
	case name == "br":
		b.WriteByte('\n')
		return
	case name == "script" || name == "style" || name == "noscript" || name == "#comment":
		return
	}

	block := blockElements[name]
	if block {
		b.WriteByte('\n')
	}
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		writeText(b, c)
	})
	if block {
		b.WriteByte('\n')
	}
}
