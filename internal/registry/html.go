package registry

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespace = regexp.MustCompile(`\s+`)

// ParseCourseDescription turns a getCourseDescription fragment into plain
// text. The portal's "No course description available" placeholder yields "".
func ParseCourseDescription(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("section").First().Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "no ") && strings.Contains(lower, "available") {
		return ""
	}
	return text
}
