package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CatalogClient looks up bibliographic metadata in an external catalog.
// Implementations do not retry: a failed call is terminal for the job that
// made it.
type CatalogClient interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
	FetchDetails(ctx context.Context, asin string) (*Metadata, error)
	DownloadCover(ctx context.Context, coverURL string) ([]byte, error)
}

// defaultLocales is the regional catalog search order.
var defaultLocales = []string{"com", "co.uk", "ca", "fr", "de", "it", "es", "co.jp", "com.au", "com.br"}

const (
	responseGroups  = "category_ladders,contributors,media,product_desc,product_attrs,product_extended_attrs,rating,series"
	searchCap       = 5
	clientUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// AudibleClient queries the Audible products API across regional catalogs.
type AudibleClient struct {
	httpClient *http.Client
	locales    []string

	// baseURL, when set, overrides the per-locale endpoint. Used by tests.
	baseURL string
}

// NewAudibleClient creates a catalog client with the default locale order.
func NewAudibleClient() *AudibleClient {
	return &AudibleClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		locales:    defaultLocales,
	}
}

func (c *AudibleClient) endpoint(locale string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://api.audible.%s/1.0/catalog/products", locale)
}

// Search queries each regional catalog in order and stops at the first one
// that returns products. Candidates are deduplicated by ASIN and capped at
// five.
func (c *AudibleClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var lastErr error
	for _, locale := range c.locales {
		products, err := c.fetchProducts(ctx, locale, url.Values{
			"keywords":        {query},
			"response_groups": {responseGroups},
			"image_sizes":     {"500,1000"},
			"num_results":     {fmt.Sprint(searchCap)},
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(products) == 0 {
			continue
		}

		seen := make(map[string]bool)
		var results []SearchResult
		for _, p := range products {
			if p.ASIN == "" || seen[p.ASIN] {
				continue
			}
			seen[p.ASIN] = true
			results = append(results, SearchResult{
				Title:    p.Title,
				Author:   processAuthors(p.Authors),
				Narrator: joinNames(p.Narrators),
				Series:   p.seriesLabel(),
				ASIN:     p.ASIN,
				Locale:   locale,
			})
			if len(results) == searchCap {
				break
			}
		}
		return results, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("catalog search %q: %w", query, lastErr)
	}
	return nil, nil
}

// FetchDetails resolves one ASIN to its full metadata, trying each regional
// catalog until one knows the title.
func (c *AudibleClient) FetchDetails(ctx context.Context, asin string) (*Metadata, error) {
	var lastErr error
	for _, locale := range c.locales {
		products, err := c.fetchProducts(ctx, locale, url.Values{
			"keywords":        {asin},
			"response_groups": {responseGroups},
			"image_sizes":     {"500,1000"},
			"num_results":     {"1"},
		})
		if err != nil {
			lastErr = err
			continue
		}
		for _, p := range products {
			if p.ASIN != asin {
				continue
			}
			meta := &Metadata{
				ASIN:        asin,
				Title:       p.Title,
				Subtitle:    p.Subtitle,
				Author:      processAuthors(p.Authors),
				Narrator:    joinNames(p.Narrators),
				Description: p.description(),
				ReleaseDate: p.ReleaseDate,
				Language:    p.Language,
				CoverURL:    p.coverURL(),
				Locale:      locale,
			}
			if len(p.Series) > 0 {
				meta.Series = p.Series[0].Title
				meta.SeriesPart = p.Series[0].Sequence
			}
			for _, ladder := range p.CategoryLadders {
				for _, cat := range ladder.Ladder {
					meta.Genres = appendUnique(meta.Genres, cat.Name)
				}
			}
			return meta, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("catalog details %s: %w", asin, lastErr)
	}
	return nil, fmt.Errorf("catalog details %s: no product found in any locale", asin)
}

// DownloadCover fetches the raw cover image bytes.
func (c *AudibleClient) DownloadCover(ctx context.Context, coverURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download cover: %w", err)
	}
	req.Header.Set("User-Agent", clientUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download cover: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download cover: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *AudibleClient) fetchProducts(ctx context.Context, locale string, params url.Values) ([]product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(locale)+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", clientUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locale %s: status %d", locale, resp.StatusCode)
	}

	var body struct {
		Products []product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("locale %s: decode response: %w", locale, err)
	}
	return body.Products, nil
}

// product mirrors the slice of the Audible products payload we consume.
type product struct {
	ASIN        string `json:"asin"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	ReleaseDate string `json:"release_date"`
	Language    string `json:"language"`
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Narrators []struct {
		Name string `json:"name"`
	} `json:"narrators"`
	Series []struct {
		Title    string `json:"title"`
		Sequence string `json:"sequence"`
	} `json:"series"`
	ProductImages map[string]string `json:"product_images"`
	MerchSummary  string            `json:"merchandising_summary"`
	PublisherSumm string            `json:"publisher_summary"`
	CategoryLadders []struct {
		Ladder []struct {
			Name string `json:"name"`
		} `json:"ladder"`
	} `json:"category_ladders"`
}

func (p *product) seriesLabel() string {
	if len(p.Series) == 0 {
		return ""
	}
	label := p.Series[0].Title
	if p.Series[0].Sequence != "" {
		label += " #" + p.Series[0].Sequence
	}
	return label
}

// coverURL prefers the 1000px image and falls back to 500px.
func (p *product) coverURL() string {
	if u, ok := p.ProductImages["1000"]; ok && u != "" {
		return u
	}
	return p.ProductImages["500"]
}

func (p *product) description() string {
	if p.PublisherSumm != "" {
		return stripHTML(p.PublisherSumm)
	}
	return stripHTML(p.MerchSummary)
}

// translatorKeywords marks contributor names that are translators rather
// than authors; they are dropped unless nothing else remains.
var translatorKeywords = []string{
	"translator", "traducteur", "traductrice", "traductor", "traductora",
	"übersetzer", "übersetzerin", "traduttore", "traduttrice",
}

func processAuthors(authors []struct {
	Name string `json:"name"`
}) string {
	var kept, all []string
	for _, a := range authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		all = append(all, name)
		lower := strings.ToLower(name)
		translator := false
		for _, kw := range translatorKeywords {
			if strings.Contains(lower, kw) {
				translator = true
				break
			}
		}
		if !translator {
			kept = append(kept, name)
		}
	}
	if len(kept) == 0 {
		kept = all
	}
	if len(kept) == 0 {
		return "Unknown Author"
	}
	return strings.Join(kept, ", ")
}

func joinNames(names []struct {
	Name string `json:"name"`
}) string {
	var out []string
	for _, n := range names {
		if name := strings.TrimSpace(n.Name); name != "" {
			out = append(out, name)
		}
	}
	return strings.Join(out, ", ")
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// stripHTML removes tags and collapses whitespace in catalog descriptions,
// which arrive as HTML fragments.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
