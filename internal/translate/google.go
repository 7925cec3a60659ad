package translate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/listingworker/helpers"
)

// GoogleMaxInput is the longest text the mobile translate page accepts
const GoogleMaxInput = 5000

// ErrInputTooLong is returned for text over GoogleMaxInput runes
var ErrInputTooLong = errors.New("translate: input exceeds translator limit")

// Translator translates text between languages. source may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// GoogleTranslator scrapes the Google Translate mobile page
type GoogleTranslator struct {
	baseURL string
}

// Ensure GoogleTranslator implements Translator
var _ Translator = (*GoogleTranslator)(nil)

// NewGoogleTranslator creates a translator for the page at baseURL,
// e.g. https://translate.google.com/m
func NewGoogleTranslator(baseURL string) *GoogleTranslator {
	return &GoogleTranslator{baseURL: strings.TrimRight(baseURL, "/")}
}

// Translate sends text in a single request and returns the translation
func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if utf8.RuneCountInString(text) > GoogleMaxInput {
		return "", ErrInputTooLong
	}

	params := url.Values{}
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("q", text)

	body, err := helpers.FetchWithRandomHeaders(ctx, g.baseURL+"?"+params.Encode(), "")
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse translate page: %w", err)
	}

	result := strings.TrimSpace(doc.Find("div.result-container").First().Text())
	if result == "" {
		return "", errors.New("translate page has no result")
	}
	return result, nil
}
