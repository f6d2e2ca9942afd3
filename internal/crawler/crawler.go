// Package crawler paginates the public certificate listing, resolves each
// listing to its report image, and downloads images with content-hash
// dedup. All HTTP goes through one shared fixed-interval fetcher, so
// concurrent workers never burst past the site's tolerated rate.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vialcheck/vialcheck-cli/internal/fetcher"
	"github.com/vialcheck/vialcheck-cli/internal/resilience"
)

// Listing is one certificate reference found on the listing pages.
type Listing struct {
	ExternalID string
	DetailURL  string
}

// Options configures a Crawler.
type Options struct {
	BaseURL        string
	MaxPages       int // 0 = unlimited
	MaxItems       int // 0 = unlimited
	ImageDir       string
	MaxConcurrent  int
	ResolveRetries int
	ResolveBackoff time.Duration
}

// Crawler walks the certificate listing site.
type Crawler struct {
	fetch *fetcher.Client
	opts  Options
}

// New creates a Crawler on top of the shared rate-limited fetcher.
func New(fetch *fetcher.Client, opts Options) *Crawler {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.ResolveRetries <= 0 {
		opts.ResolveRetries = 3
	}
	if opts.ResolveBackoff <= 0 {
		opts.ResolveBackoff = 2 * time.Second
	}
	return &Crawler{fetch: fetch, opts: opts}
}

var (
	taskNumberRE  = regexp.MustCompile(`/certificates?/(\d+)`)
	certAnchorRE  = regexp.MustCompile(`(?i)<a[^>]+href="([^"]*certificates?/\d+[^"]*)"`)
	certImageRE   = regexp.MustCompile(`(?i)<img[^>]+src="([^"]*certificates?/\d+[^"]*)"`)
	nextPageRE    = regexp.MustCompile(`(?i)<a[^>]+(?:rel="next"|class="[^"]*\bnext\b[^"]*")`)
	anchorRE      = regexp.MustCompile(`(?i)<a([^>]+)>((?:[^<]|<[^/a])*)</a>`)
	hrefAttrRE    = regexp.MustCompile(`(?i)href="([^"]+)"`)
	imgTagRE      = regexp.MustCompile(`(?i)<img[^>]+src="([^"]+)"`)
	imageExtRE    = regexp.MustCompile(`(?i)\.(jpe?g|png|webp)(\?|$)`)
	nonReportPath = regexp.MustCompile(`(?i)(logo|icon|banner|avatar|product|thumb|favicon)`)
)

// ListCertificates paginates the listing until a page yields zero items,
// the site reports no next page, or a page/item cap is hit. Items are
// deduplicated by external identifier across pages.
func (c *Crawler) ListCertificates(ctx context.Context, progress func(page, total int)) ([]Listing, error) {
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse base url %s", c.opts.BaseURL)
	}

	seen := make(map[string]bool)
	var listings []Listing

	for page := 1; ; page++ {
		if c.opts.MaxPages > 0 && page > c.opts.MaxPages {
			break
		}

		pageURL := c.opts.BaseURL
		if page > 1 {
			sep := "?"
			if strings.Contains(pageURL, "?") {
				sep = "&"
			}
			pageURL = fmt.Sprintf("%s%spage=%d", c.opts.BaseURL, sep, page)
		}

		body, err := c.fetch.Get(ctx, pageURL)
		if err != nil {
			// A failed page ends the crawl with what we have so far, it
			// does not discard prior pages.
			zap.L().Error("crawler: listing page fetch failed",
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}

		pageItems := parseListingPage(string(body), base)

		newOnPage := 0
		for _, item := range pageItems {
			if seen[item.ExternalID] {
				continue
			}
			seen[item.ExternalID] = true
			listings = append(listings, item)
			newOnPage++
			if c.opts.MaxItems > 0 && len(listings) >= c.opts.MaxItems {
				break
			}
		}

		zap.L().Debug("crawler: listing page parsed",
			zap.Int("page", page),
			zap.Int("new_items", newOnPage),
			zap.Int("total", len(listings)),
		)
		if progress != nil {
			progress(page, len(listings))
		}

		if newOnPage == 0 {
			break
		}
		if c.opts.MaxItems > 0 && len(listings) >= c.opts.MaxItems {
			break
		}
		if !nextPageRE.MatchString(string(body)) {
			break
		}
	}

	zap.L().Info("crawler: listing complete", zap.Int("items", len(listings)))
	return listings, nil
}

// parseListingPage extracts certificate references from a listing page.
// Detail anchors are preferred; bare certificate images are a fallback for
// layouts that link the image directly.
func parseListingPage(html string, base *url.URL) []Listing {
	var listings []Listing
	seen := make(map[string]bool)

	add := func(raw string) {
		m := taskNumberRE.FindStringSubmatch(raw)
		if m == nil {
			return
		}
		id := m[1]
		if seen[id] {
			return
		}
		seen[id] = true
		listings = append(listings, Listing{
			ExternalID: id,
			DetailURL:  absoluteURL(raw, base),
		})
	}

	for _, m := range certAnchorRE.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	for _, m := range certImageRE.FindAllStringSubmatch(html, -1) {
		add(m[1])
	}
	return listings
}

// ResolveImageURL visits a detail page and extracts the canonical report
// image link. An explicit download anchor wins; otherwise the first <img>
// that looks like a report and not site furniture. Returns false when the
// page has no usable image.
func (c *Crawler) ResolveImageURL(ctx context.Context, detailURL string) (string, bool, error) {
	// The detail URL may already point at the image itself.
	if imageExtRE.MatchString(detailURL) {
		return detailURL, true, nil
	}

	body, err := c.fetch.Get(ctx, detailURL)
	if err != nil {
		return "", false, eris.Wrapf(err, "crawler: fetch detail page %s", detailURL)
	}

	base, err := url.Parse(detailURL)
	if err != nil {
		return "", false, eris.Wrapf(err, "crawler: parse detail url %s", detailURL)
	}

	if img, ok := findReportImage(string(body), base); ok {
		return img, true, nil
	}
	return "", false, nil
}

func findReportImage(html string, base *url.URL) (string, bool) {
	// Preferred: an explicit "download report" style anchor.
	for _, m := range anchorRE.FindAllStringSubmatch(html, -1) {
		attrs, text := m[1], m[2]
		if !strings.Contains(strings.ToLower(attrs+text), "download") {
			continue
		}
		href := hrefAttrRE.FindStringSubmatch(attrs)
		if href == nil {
			continue
		}
		if imageExtRE.MatchString(href[1]) || taskNumberRE.MatchString(href[1]) {
			return absoluteURL(href[1], base), true
		}
	}

	// Fallback: pattern-match <img> tags, excluding known non-report paths.
	for _, m := range imgTagRE.FindAllStringSubmatch(html, -1) {
		src := m[1]
		if nonReportPath.MatchString(src) {
			continue
		}
		if imageExtRE.MatchString(src) || taskNumberRE.MatchString(src) {
			return absoluteURL(src, base), true
		}
	}
	return "", false
}

func absoluteURL(raw string, base *url.URL) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(u).String()
}

// ItemFailure records one listing that could not be resolved or downloaded.
type ItemFailure struct {
	ExternalID string
	Err        error
}

// FetchImages resolves and downloads images for the given listings with
// bounded parallelism. Per-item failures are retried with a short fixed
// backoff and then recorded, never aborting the batch. Output order does
// not match input order.
func (c *Crawler) FetchImages(ctx context.Context, listings []Listing, progress func(done, total int)) ([]Download, []ItemFailure) {
	var (
		mu        sync.Mutex
		downloads []Download
		failures  []ItemFailure
		done      int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.MaxConcurrent)

	retryCfg := resilience.FixedRetryConfig(c.opts.ResolveRetries, c.opts.ResolveBackoff)
	retryCfg.ShouldRetry = func(error) bool { return true }

	for _, item := range listings {
		g.Go(func() error {
			dl, err := resilience.DoVal(gCtx, retryCfg, func(ctx context.Context) (*Download, error) {
				imageURL, ok, err := c.ResolveImageURL(ctx, item.DetailURL)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, eris.Errorf("crawler: no report image on %s", item.DetailURL)
				}
				return c.DownloadImage(ctx, imageURL, item.ExternalID)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("crawler: item failed",
					zap.String("external_id", item.ExternalID),
					zap.Error(err),
				)
				failures = append(failures, ItemFailure{ExternalID: item.ExternalID, Err: err})
			} else {
				downloads = append(downloads, *dl)
			}
			done++
			if progress != nil {
				progress(done, len(listings))
			}
			return nil
		})
	}

	_ = g.Wait()
	return downloads, failures
}
