// Package listing defines the normalized marketplace listing shared by every
// pipeline stage.
package listing

import (
	"sort"
	"time"
)

// DefaultCategory is used for listings whose adapter assigned no category
const DefaultCategory = "uncategorized"

// Title holds the original listing title and its English translation.
// English stays nil until the translation stage fills it in.
type Title struct {
	Original string  `json:"original" bson:"original"`
	English  *string `json:"english" bson:"english"`
}

// Price is the adapter-defined price of a listing. A nil *Price means the
// price is unknown or negotiable.
type Price struct {
	Amount   *float64 `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency string   `json:"currency,omitempty" bson:"currency,omitempty"`
	EUR      *float64 `json:"eur,omitempty" bson:"eur,omitempty"`
}

// Listing represents one marketplace ad
type Listing struct {
	Title       Title      `json:"title" bson:"title"`
	Description *string    `json:"description" bson:"description"`
	MainImage   *string    `json:"main_image" bson:"main_image"`
	Link        string     `json:"link" bson:"link"`
	Price       *Price     `json:"price" bson:"price"`
	Timestamp   *time.Time `json:"timestamp" bson:"timestamp"`
	Category    string     `json:"category" bson:"category"`
	Source      string     `json:"source" bson:"source"`
	ScrapedAt   time.Time  `json:"scraped_at" bson:"scraped_at"`
	LastUpdated time.Time  `json:"last_updated" bson:"last_updated"`
}

// IsComplete reports whether the listing has a link, a main image and an
// original title
func (l *Listing) IsComplete() bool {
	return l.Link != "" && l.MainImage != nil && *l.MainImage != "" && l.Title.Original != ""
}

// CategoryOrDefault returns the listing category, or DefaultCategory when unset
func (l *Listing) CategoryOrDefault() string {
	if l.Category == "" {
		return DefaultCategory
	}
	return l.Category
}

// SetEnglish stores an English title
func (t *Title) SetEnglish(english string) {
	t.English = &english
}

// PagedListings maps a 1-based page number to the listings found on that page
type PagedListings map[int][]*Listing

// Pages returns the page numbers in ascending order
func (p PagedListings) Pages() []int {
	pages := make([]int, 0, len(p))
	for page := range p {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// Flatten returns every listing in page order. The returned slice shares the
// listing pointers with p.
func (p PagedListings) Flatten() []*Listing {
	var all []*Listing
	for _, page := range p.Pages() {
		for _, l := range p[page] {
			if l != nil {
				all = append(all, l)
			}
		}
	}
	return all
}

// Len returns the number of non-nil listings across all pages
func (p PagedListings) Len() int {
	n := 0
	for _, listings := range p {
		for _, l := range listings {
			if l != nil {
				n++
			}
		}
	}
	return n
}

// Add appends a listing to a page
func (p PagedListings) Add(page int, l *Listing) {
	p[page] = append(p[page], l)
}

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
