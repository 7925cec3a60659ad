package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/listingworker/helpers"
	"sjsage522/listingworker/internal/listing"
	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
	"sjsage522/listingworker/services/cache"
)

// PagePlaceholder is replaced with the page number in Source.URL
const PagePlaceholder = "{page}"

// Source is one category listing of a site
type Source struct {
	// URL of result pages, containing PagePlaceholder
	URL string
	// FirstPage is used for page 1 when the site has no page parameter there
	FirstPage string
	Category  string
}

// Selectors contains CSS selectors for the elements of a result page
type Selectors struct {
	Item        string
	Title       string
	Link        string
	Image       string
	Description string
	Price       string
	Timestamp   string
	ClassFilter string
}

// SiteConfig contains configuration for an HTML adapter
type SiteConfig struct {
	Name           string
	BaseURL        string
	AcceptLanguage string
	Currency       string
	// EURRate is a fixed conversion rate to EUR; zero leaves EUR unset
	EURRate   float64
	Sources   []Source
	Selectors Selectors
	PageDelay time.Duration
	CacheKey  string
	BlockTime time.Duration
}

// FetchFunc fetches a page and returns its UTF-8 body
type FetchFunc func(ctx context.Context, url, acceptLanguage string) (io.Reader, error)

// HTMLAdapter scrapes server-rendered result pages with goquery selectors
type HTMLAdapter struct {
	cfg   SiteConfig
	cache cache.CacheService
	fetch FetchFunc
	log   *logger.Logger
}

// Ensure HTMLAdapter implements SiteAdapter
var _ SiteAdapter = (*HTMLAdapter)(nil)

// NewHTMLAdapter creates an adapter. cacheSvc may be nil, which disables the
// rate-limit block.
func NewHTMLAdapter(cfg SiteConfig, cacheSvc cache.CacheService) *HTMLAdapter {
	return &HTMLAdapter{
		cfg:   cfg,
		cache: cacheSvc,
		fetch: helpers.FetchWithRandomHeaders,
		log:   logger.ForAdapter(cfg.Name),
	}
}

// WithFetch replaces the page fetcher
func (a *HTMLAdapter) WithFetch(fetch FetchFunc) *HTMLAdapter {
	a.fetch = fetch
	return a
}

// Name returns the site name
func (a *HTMLAdapter) Name() string {
	return a.cfg.Name
}

// Scrape walks every source of the site page by page. A source stops early
// when a page yields no listing not already seen in this scrape.
func (a *HTMLAdapter) Scrape(ctx context.Context, maxPages int) (listing.PagedListings, error) {
	result := make(listing.PagedListings)
	seen := make(map[string]struct{})
	var errs []error

	for _, src := range a.cfg.Sources {
		for page := 1; page <= maxPages; page++ {
			if err := ctx.Err(); err != nil {
				return result, errors.Join(append(errs, err)...)
			}
			if a.blocked() {
				return result, errors.Join(append(errs, pkgerrors.NewRateLimit(a.cfg.Name, a.cfg.BlockTime))...)
			}

			listings, err := a.scrapePage(ctx, src, page)
			if err != nil {
				if errors.Is(err, helpers.ErrRateLimited) {
					a.block()
					return result, errors.Join(append(errs, pkgerrors.NewRateLimit(a.cfg.Name, a.cfg.BlockTime))...)
				}
				errs = append(errs, pkgerrors.NewAdapter(a.cfg.Name, fmt.Sprintf("%s page %d", src.Category, page), err))
				break
			}

			fresh := 0
			for _, l := range listings {
				if _, dup := seen[l.Link]; dup {
					continue
				}
				seen[l.Link] = struct{}{}
				result.Add(page, l)
				fresh++
			}

			a.log.Debug().
				Str("category", src.Category).
				Int("page", page).
				Int("listings", fresh).
				Msg("Scraped page")

			if fresh == 0 {
				break
			}
			if page < maxPages && !sleep(ctx, a.cfg.PageDelay) {
				return result, errors.Join(append(errs, ctx.Err())...)
			}
		}
	}

	return result, errors.Join(errs...)
}

func (a *HTMLAdapter) scrapePage(ctx context.Context, src Source, page int) ([]*listing.Listing, error) {
	body, err := a.fetch(ctx, pageURL(src, page), a.cfg.AcceptLanguage)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var listings []*listing.Listing
	doc.Find(a.cfg.Selectors.Item).Each(func(i int, s *goquery.Selection) {
		if l := a.parseItem(s, src.Category); l != nil {
			listings = append(listings, l)
		}
	})
	return listings, nil
}

// parseItem returns nil for items without a title or link
func (a *HTMLAdapter) parseItem(s *goquery.Selection, category string) *listing.Listing {
	sel := a.cfg.Selectors
	if sel.ClassFilter != "" && s.HasClass(sel.ClassFilter) {
		return nil
	}

	title := a.title(s)
	link := a.link(s)
	if title == "" || link == "" {
		return nil
	}

	l := &listing.Listing{
		Title:    listing.Title{Original: title},
		Link:     link,
		Category: category,
	}
	if sel.Description != "" {
		l.Description = listing.StringPtr(strings.TrimSpace(s.Find(sel.Description).First().Text()))
	}
	if sel.Image != "" {
		if img := BestImage(s.Find(sel.Image).First()); img != "" {
			l.MainImage = listing.StringPtr(a.resolveURL(img))
		}
	}
	if sel.Price != "" {
		l.Price = a.price(strings.TrimSpace(s.Find(sel.Price).First().Text()))
	}
	if sel.Timestamp != "" {
		l.Timestamp = parseTimestamp(s.Find(sel.Timestamp).First())
	}
	return l
}

func (a *HTMLAdapter) title(s *goquery.Selection) string {
	titleSel := s.Find(a.cfg.Selectors.Title).First()
	if titleSel.Length() == 0 {
		return ""
	}
	if attr, ok := titleSel.Attr("title"); ok && strings.TrimSpace(attr) != "" {
		return strings.TrimSpace(attr)
	}
	return strings.Join(strings.Fields(titleSel.Text()), " ")
}

func (a *HTMLAdapter) link(s *goquery.Selection) string {
	linkSel := s
	if a.cfg.Selectors.Link != "" {
		linkSel = s.Find(a.cfg.Selectors.Link).First()
	}
	href, ok := linkSel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return a.resolveURL(strings.TrimSpace(href))
}

func (a *HTMLAdapter) price(text string) *listing.Price {
	amount, ok := ParsePrice(text)
	if !ok {
		return nil
	}
	p := &listing.Price{Amount: &amount, Currency: a.cfg.Currency}
	switch {
	case a.cfg.Currency == "EUR":
		eur := amount
		p.EUR = &eur
	case a.cfg.EURRate > 0:
		eur := float64(int(amount * a.cfg.EURRate))
		p.EUR = &eur
	}
	return p
}

// resolveURL converts a relative URL to an absolute URL
func (a *HTMLAdapter) resolveURL(u string) string {
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "/"):
		return strings.TrimRight(a.cfg.BaseURL, "/") + u
	default:
		return strings.TrimRight(a.cfg.BaseURL, "/") + "/" + u
	}
}

// blocked reports whether an earlier rate-limit response still blocks the site
func (a *HTMLAdapter) blocked() bool {
	if a.cache == nil || a.cfg.CacheKey == "" {
		return false
	}
	_, err := a.cache.Get(a.cfg.CacheKey)
	return err == nil
}

func (a *HTMLAdapter) block() {
	if a.cache == nil || a.cfg.CacheKey == "" || a.cfg.BlockTime <= 0 {
		return
	}
	value := []byte(strconv.Itoa(int(a.cfg.BlockTime / time.Second)))
	if err := a.cache.Set(a.cfg.CacheKey, value, a.cfg.BlockTime); err != nil {
		a.log.Warn().Err(pkgerrors.NewCache(a.cfg.Name, "failed to store rate-limit block", err)).Msg("Rate-limit block not stored")
		return
	}
	a.log.Warn().Dur("block_time", a.cfg.BlockTime).Msg("Rate limited, blocking site")
}

func pageURL(src Source, page int) string {
	if page == 1 && src.FirstPage != "" {
		return src.FirstPage
	}
	return strings.ReplaceAll(src.URL, PagePlaceholder, strconv.Itoa(page))
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
