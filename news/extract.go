package news

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Boilerplate patterns stripped from extracted paragraphs.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)see all`),
	regexp.MustCompile(`(?i)daily digest`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)subscribe`),
	regexp.MustCompile(`(?i)sign up`),
	regexp.MustCompile(`(?i)cookie`),
}

var whitespaceRE = regexp.MustCompile(`\s+`)

const minParagraphLen = 80

// ExtractText pulls the main article text out of a news page.
// It prefers an <article> element and falls back to filtered <p> paragraphs,
// then truncates to maxChars (0 means no limit).
func ExtractText(html string, maxChars int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var candidates []string

	if article := doc.Find("article").First(); article.Length() > 0 {
		candidates = append(candidates, normalizeSpace(article.Text()))
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, s.Text())
	})
	if filtered := filterParagraphs(paragraphs); len(filtered) > 0 {
		candidates = append(candidates, strings.Join(filtered, " "))
	}

	best := ""
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}

	if maxChars > 0 && len(best) > maxChars {
		best = best[:maxChars]
	}
	return best, nil
}

// filterParagraphs drops navigation, ads and very short segments, and
// deduplicates repeated paragraphs.
func filterParagraphs(paragraphs []string) []string {
	var filtered []string
	seen := make(map[string]bool)

	for _, p := range paragraphs {
		text := normalizeSpace(p)
		lower := strings.ToLower(text)

		if len(text) < minParagraphLen {
			continue
		}
		if matchesNoise(lower) {
			continue
		}
		if seen[lower] {
			continue
		}

		filtered = append(filtered, text)
		seen[lower] = true
	}

	return filtered
}

func matchesNoise(text string) bool {
	for _, pattern := range noisePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func normalizeSpace(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
