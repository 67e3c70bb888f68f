package crawler

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RawRecord is one feedback entry as extracted from the rendered page,
// before fingerprinting and persistence.
type RawRecord struct {
	Author         string
	Text           string
	Tags           []string
	VisitDate      string
	VisitOrdinal   string
	Verified       bool
	AttachmentURLs []string
}

// RawMenuItem is one sub-item captured from the place page.
type RawMenuItem struct {
	Name        string
	Price       string
	Description string
}

// firstText walks the selector chain and returns the trimmed text of the
// first selector that matches with non-empty content. An exhausted chain
// means the field is absent, not an error.
func firstText(s *goquery.Selection, chain []string) string {
	for _, sel := range chain {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func allText(s *goquery.Selection, chain []string) []string {
	for _, sel := range chain {
		found := s.Find(sel)
		if found.Length() == 0 {
			continue
		}
		var out []string
		found.Each(func(_ int, el *goquery.Selection) {
			if text := strings.TrimSpace(el.Text()); text != "" {
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func allAttr(s *goquery.Selection, chain []string, attr string) []string {
	for _, sel := range chain {
		found := s.Find(sel)
		if found.Length() == 0 {
			continue
		}
		var out []string
		found.Each(func(_ int, el *goquery.Selection) {
			if v, ok := el.Attr(attr); ok && v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func exists(s *goquery.Selection, chain []string) bool {
	for _, sel := range chain {
		if s.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// parseReviews extracts every feedback entry from a rendered feed document.
func parseReviews(doc *goquery.Document) []RawRecord {
	var records []RawRecord
	items := selectAny(doc, reviewItemSelectors)
	items.Each(func(_ int, item *goquery.Selection) {
		rec := RawRecord{
			Author:         firstText(item, authorSelectors),
			Text:           firstText(item, bodySelectors),
			Tags:           allText(item, tagSelectors),
			VisitDate:      firstText(item, visitDateSelectors),
			VisitOrdinal:   firstText(item, visitOrdinalSelectors),
			Verified:       exists(item, verifiedSelectors),
			AttachmentURLs: allAttr(item, attachmentSelectors, "src"),
		}
		if rec.Author == "" && rec.Text == "" {
			return
		}
		records = append(records, rec)
	})
	return records
}

// parseMenuItems extracts the place's sub-items from the same document.
func parseMenuItems(doc *goquery.Document) []RawMenuItem {
	var items []RawMenuItem
	selectAny(doc, menuItemSelectors).Each(func(_ int, s *goquery.Selection) {
		item := RawMenuItem{
			Name:        firstText(s, menuNameSelectors),
			Price:       firstText(s, menuPriceSelectors),
			Description: firstText(s, menuDescSelectors),
		}
		if item.Name == "" {
			return
		}
		items = append(items, item)
	})
	return items
}

// parseTotalCount reads the source's declared entry count, or 0 when the
// page does not show one.
func parseTotalCount(doc *goquery.Document) int {
	raw := firstText(doc.Selection, totalCountSelectors)
	if raw == "" {
		return 0
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// selectAny returns the matches of the first selector in the chain that
// matches anything.
func selectAny(doc *goquery.Document, chain []string) *goquery.Selection {
	for _, sel := range chain {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find(chain[len(chain)-1])
}
