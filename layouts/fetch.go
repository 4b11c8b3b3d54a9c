package layouts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/store"
)

// maxLayoutBytes bounds a single download.
const maxLayoutBytes = 1 << 20

type Config struct {
	IndexURLs    []string
	OutDir       string
	RequestDelay time.Duration // pause between requests
	MaxLayouts   int           // 0 = unlimited
	UserAgent    string
	Logger       *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		OutDir:       "layouts",
		RequestDelay: 500 * time.Millisecond,
		UserAgent:    "pursuit-layout-fetcher/1.0",
		Logger:       slog.Default(),
	}
}

type Stats struct {
	Found   int
	Fetched int
	Skipped int
	Failed  int
}

// Fetcher downloads layouts it has not seen before. Names already in the
// written log are skipped, and every stored layout is added to it.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	written *store.WrittenLog
	log     *slog.Logger
}

func NewFetcher(cfg Config, written *store.WrittenLog) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		written: written,
		log:     logger,
	}
}

// Fetch crawls every index page. Failures on single layouts are logged and
// counted; only an index page that cannot be read, or ctx ending, is an error.
func (f *Fetcher) Fetch(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := os.MkdirAll(f.cfg.OutDir, 0o755); err != nil {
		return stats, fmt.Errorf("create layout dir: %w", err)
	}

	for _, indexURL := range f.cfg.IndexURLs {
		links, err := f.indexLinks(ctx, indexURL)
		if err != nil {
			return stats, fmt.Errorf("index %s: %w", indexURL, err)
		}
		f.log.Info("crawled index", "url", indexURL, "layouts", len(links))
		stats.Found += len(links)

		for _, link := range links {
			if f.cfg.MaxLayouts > 0 && stats.Fetched >= f.cfg.MaxLayouts {
				return stats, nil
			}
			name := Name(link.Path)
			if f.written.Has(name) {
				stats.Skipped++
				continue
			}

			if err := f.fetchOne(ctx, link, name); err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				f.log.Warn("layout fetch failed", "name", name, "url", link.String(), "error", err)
				stats.Failed++
			} else {
				stats.Fetched++
				f.log.Info("fetched layout", "name", name)
			}

			if err := sleepCtx(ctx, f.cfg.RequestDelay); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// indexLinks returns the absolute URLs of distinct .lay links on the page.
func (f *Fetcher) indexLinks(ctx context.Context, indexURL string) ([]*url.URL, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, err
	}
	body, err := f.get(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	var links []*url.URL
	seen := make(map[string]bool)
	doc.Find(`a[href$=".lay"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if seen[abs.String()] {
			return
		}
		seen[abs.String()] = true
		links = append(links, abs)
	})
	return links, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, link *url.URL, name string) error {
	if name == "" || name == "." || path.Ext(link.Path) != Ext {
		return fmt.Errorf("bad layout name %q", name)
	}
	body, err := f.get(ctx, link.String())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxLayoutBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if _, err := game.ParseLayoutString(string(data)); err != nil {
		return err
	}

	finalPath := filepath.Join(f.cfg.OutDir, name+Ext)
	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename layout: %w", err)
	}
	return f.written.Add(name)
}

func (f *Fetcher) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
