package main

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseGuide extracts a device guide from its page. The title is the first
// heading; steps are the items of the ordered lists inside the guide content,
// or of any ordered list when the page has no content wrapper.
func ParseGuide(doc *goquery.Document) Guide {
	guide := Guide{
		Title: cleanText(doc.Find("h1").First().Text()),
	}

	root := doc.Find("main, article, .guide").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	root.Find("ol > li").Each(func(i int, s *goquery.Selection) {
		step := cleanText(s.Text())
		if step == "" {
			return
		}
		guide.Steps = append(guide.Steps, step)
	})

	root.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "http") {
			guide.Links = append(guide.Links, href)
		}
	})

	return guide
}

// cleanText collapses the whitespace left by HTML formatting.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
