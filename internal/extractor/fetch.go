package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"milesync/internal"
	"milesync/internal/config"
)

const maxPageBytes = 8 << 20

// Fetcher loads a page snapshot from a URL or a saved HTML file.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(cfg config.Config) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: time.Duration(cfg.FetchTimeoutMs) * time.Millisecond},
		userAgent:  cfg.FetchUserAgent,
	}
}

func (f *Fetcher) Load(ctx context.Context, source string, program internal.Program) (Page, error) {
	if isURL(source) {
		return f.fetch(ctx, source, program)
	}
	file, err := os.Open(source)
	if err != nil {
		return Page{}, err
	}
	defer file.Close()
	return ParseHTML(io.LimitReader(file, maxPageBytes), program)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, program internal.Program) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, fmt.Errorf("fetch %s: status=%d body=%s", rawURL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return ParseHTML(io.LimitReader(resp.Body, maxPageBytes), program)
}

func isURL(source string) bool {
	lower := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
