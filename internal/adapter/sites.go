package adapter

import (
	"time"

	"sjsage522/listingworker/services/cache"
)

const (
	defaultPageDelay = 2 * time.Second
	defaultBlockTime = 500 * time.Second
)

// DefaultSites returns the marketplaces the worker knows how to scrape
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{
			Name:           "kleinanzeigen",
			BaseURL:        "https://www.kleinanzeigen.de",
			AcceptLanguage: "de-DE,de;q=0.9",
			Currency:       "EUR",
			Sources: []Source{
				{FirstPage: "https://www.kleinanzeigen.de/s-computer-sonstiges/c161", URL: "https://www.kleinanzeigen.de/s-computer-sonstiges/seite:{page}/c161", Category: "computers"},
				{FirstPage: "https://www.kleinanzeigen.de/s-musikinstrumente/c74", URL: "https://www.kleinanzeigen.de/s-musikinstrumente/seite:{page}/c74", Category: "music"},
			},
			Selectors: Selectors{
				Item:        "li.ad-listitem",
				Title:       "a.ellipsis",
				Link:        "a.ellipsis",
				Image:       "div.imagebox.srpimagebox img",
				Description: "p.aditem-main--middle--description",
				Price:       "p.aditem-main--middle--price-shipping--price",
				ClassFilter: "is-topad",
			},
			CacheKey: "kleinanzeigen_rate_limited",
		},
		{
			Name:           "blocket",
			BaseURL:        "https://www.blocket.se",
			AcceptLanguage: "sv-SE,sv;q=0.9",
			Currency:       "SEK",
			EURRate:        0.087,
			Sources: []Source{
				{URL: "https://www.blocket.se/annonser/hela_sverige/datorer_tv-spel/datorer_tillbehor?page={page}", Category: "computers"},
				{URL: "https://www.blocket.se/annonser/hela_sverige/fritid_hobby/musikutrustning?cg=6160&page={page}", Category: "music"},
			},
			Selectors: Selectors{
				Item:  "article",
				Title: "span[class*='SubjectContainer']",
				Link:  "a[class*='StyledTitleLink']",
				Image: "picture",
				Price: "div[class*='Price__StyledPrice']",
			},
			CacheKey: "blocket_rate_limited",
		},
		{
			Name:           "gumtree",
			BaseURL:        "https://www.gumtree.com",
			AcceptLanguage: "en-GB,en;q=0.9",
			Currency:       "GBP",
			EURRate:        1.17,
			Sources: []Source{
				{FirstPage: "https://www.gumtree.com/for-sale/stereos-audio/uk/", URL: "https://www.gumtree.com/for-sale/stereos-audio/uk/page{page}/", Category: "audio"},
			},
			Selectors: Selectors{
				Item:        "article",
				Title:       "div[data-q='tile-title']",
				Link:        "a[data-q='search-result-anchor']",
				Image:       "figure.listing-tile-thumbnail-image img",
				Description: "div[data-q='tile-description']",
				Price:       "div[data-q='tile-price']",
			},
			CacheKey: "gumtree_rate_limited",
		},
		{
			Name:           "tori",
			BaseURL:        "https://www.tori.fi",
			AcceptLanguage: "fi-FI,fi;q=0.9",
			Currency:       "EUR",
			Sources: []Source{
				{URL: "https://www.tori.fi/recommerce/forsale/search?category=0.93&page={page}", Category: "computers"},
				{URL: "https://www.tori.fi/recommerce/forsale/search?sub_category=1.86.92&page={page}", Category: "instruments"},
			},
			Selectors: Selectors{
				Item:  "article",
				Title: "h2",
				Link:  "a.sf-search-ad-link",
				Image: "img",
				Price: "div.text-m",
			},
			CacheKey: "tori_rate_limited",
		},
		{
			Name:           "olx",
			BaseURL:        "https://www.olx.ro",
			AcceptLanguage: "ro-RO,ro;q=0.9",
			Currency:       "RON",
			EURRate:        0.2,
			Sources: []Source{
				{FirstPage: "https://www.olx.ro/electronice-si-electrocasnice/", URL: "https://www.olx.ro/electronice-si-electrocasnice/?page={page}", Category: "electronics"},
			},
			Selectors: Selectors{
				Item:      "div[data-testid='l-card']",
				Title:     "h4, h6",
				Link:      "a",
				Image:     "img",
				Price:     "p[data-testid='ad-price']",
				Timestamp: "p[data-testid='location-date'] time",
			},
			CacheKey: "olx_rate_limited",
		},
		{
			Name:           "ricardo",
			BaseURL:        "https://www.ricardo.ch",
			AcceptLanguage: "de-CH,de;q=0.9",
			Currency:       "CHF",
			EURRate:        1.05,
			Sources: []Source{
				{FirstPage: "https://www.ricardo.ch/de/c/computer-netzwerk-39091/", URL: "https://www.ricardo.ch/de/c/computer-netzwerk-39091/?page={page}", Category: "computers"},
			},
			Selectors: Selectors{
				Item:  "a[class*='style_link']",
				Title: "p[class*='title']",
				Image: "img.MuiBox-root",
				Price: "p[class*='price']",
			},
			CacheKey: "ricardo_rate_limited",
		},
		{
			Name:           "dba",
			BaseURL:        "https://www.dba.dk",
			AcceptLanguage: "da-DK,da;q=0.9",
			Currency:       "DKK",
			EURRate:        0.134,
			Sources: []Source{
				{URL: "https://www.dba.dk/billede-og-lyd/hi-fi-og-tilbehoer/side-{page}/?soegfra=1050&radius=500", Category: "audio"},
			},
			Selectors: Selectors{
				Item:  "tr.dbaListing",
				Title: "span.text",
				Link:  "a.listingLink",
				Image: "img.image-thumbnail",
				Price: "span.price",
			},
			CacheKey: "dba_rate_limited",
		},
	}
}

// NewDefaultRegistry registers an HTML adapter for every default site.
// cacheSvc may be nil.
func NewDefaultRegistry(cacheSvc cache.CacheService) *Registry {
	registry := NewRegistry()
	for _, site := range DefaultSites() {
		if site.PageDelay == 0 {
			site.PageDelay = defaultPageDelay
		}
		if site.BlockTime == 0 {
			site.BlockTime = defaultBlockTime
		}
		registry.Register(site.Name, NewHTMLAdapter(site, cacheSvc))
	}
	return registry
}
