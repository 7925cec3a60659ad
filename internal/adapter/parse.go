package adapter

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	priceNumber = regexp.MustCompile(`\d[\d\s\x{00a0}.,'’]*`)
	decimalTail = regexp.MustCompile(`[.,](\d{1,2})$`)
)

// ParsePrice extracts the first number of a price text such as "1.200 €",
// "12 500 kr" or "CHF 1'250.50". Texts without digits report false.
func ParsePrice(text string) (float64, bool) {
	raw := priceNumber.FindString(text)
	if raw == "" {
		return 0, false
	}
	raw = strings.TrimRight(raw, " .,'’\u00a0")
	raw = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\'', '’':
			return -1
		}
		return r
	}, raw)

	var fraction string
	if m := decimalTail.FindStringSubmatchIndex(raw); m != nil {
		fraction = raw[m[2]:m[3]]
		raw = raw[:m[0]]
	}
	raw = strings.NewReplacer(".", "", ",", "").Replace(raw)
	if fraction != "" {
		raw += "." + fraction
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// BestImage returns the widest candidate of an img or source element's
// srcset, falling back to its src attributes
func BestImage(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}

	img := s
	if goquery.NodeName(s) == "picture" {
		if src := s.Find("source[srcset]").First(); src.Length() > 0 {
			img = src
		} else {
			img = s.Find("img").First()
		}
	}

	if srcset, ok := img.Attr("srcset"); ok {
		if best := widestCandidate(srcset); best != "" {
			return best
		}
	}
	for _, attr := range []string{"src", "data-src", "data-imgsrc"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// widestCandidate picks the srcset entry with the largest width or density
// descriptor; entries without a descriptor count as 1x
func widestCandidate(srcset string) string {
	var (
		best  string
		width float64
	)
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		w := 1.0
		if len(fields) > 1 {
			descriptor := strings.TrimRight(fields[1], "wx")
			if v, err := strconv.ParseFloat(descriptor, 64); err == nil {
				w = v
			}
		}
		if best == "" || w > width {
			best, width = fields[0], w
		}
	}
	return best
}

// parseTimestamp reads a datetime attribute, returning nil when missing or
// unparseable
func parseTimestamp(s *goquery.Selection) *time.Time {
	value, ok := s.Attr("datetime")
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return &t
		}
	}
	return nil
}
