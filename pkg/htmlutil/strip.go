package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRE        = regexp.MustCompile(`<[^>]*>`)
	multiSpaceRE = regexp.MustCompile(`\s{2,}`)
)

// blockCloseTags end a visual block and become newlines so paragraph
// structure survives stripping.
var blockCloseTags = []string{"</p>", "</div>", "<br>", "<br/>", "<br />", "</li>", "</h1>", "</h2>", "</h3>", "</h4>", "</h5>", "</h6>"}

// StripTags removes HTML markup from a string, preserving paragraph breaks as
// newlines and decoding entities.
func StripTags(s string) string {
	if s == "" {
		return ""
	}

	for _, tag := range blockCloseTags {
		s = strings.ReplaceAll(s, tag, "\n")
		s = strings.ReplaceAll(s, strings.ToUpper(tag), "\n")
	}

	s = tagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaceRE.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
