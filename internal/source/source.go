package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/monseeglzg-netizen/blank-app/internal/httputil"
	"github.com/monseeglzg-netizen/blank-app/internal/metrics"
)

const (
	ftpTimeout     = 30 * time.Second
	maxElapsedTime = 2 * time.Minute
)

// Fetcher reads raw bytes from a local path, an http(s) URL or an ftp URL.
type Fetcher struct {
	client         *http.Client
	maxElapsedTime time.Duration
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = httputil.NewClient()
	}
	return &Fetcher{client: client, maxElapsedTime: maxElapsedTime}
}

// Fetch reads uri with a default fetcher.
func Fetch(ctx context.Context, uri string) ([]byte, error) {
	return NewFetcher(nil).Fetch(ctx, uri)
}

func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	scheme := schemeOf(uri)
	var (
		body []byte
		err  error
	)
	switch scheme {
	case "file":
		body, err = readFile(uri)
	case "http", "https":
		body, err = f.fetchHTTP(ctx, uri)
	case "ftp":
		body, err = fetchFTP(ctx, uri)
	default:
		err = fmt.Errorf("unsupported source scheme %q", scheme)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SourceFetchesTotal.WithLabelValues(scheme, status).Inc()
	return body, err
}

func schemeOf(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 1 {
		return "file"
	}
	return strings.ToLower(uri[:i])
}

func readFile(uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", uri, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", uri, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func fetchFTP(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", uri, err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":21"
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(ftpTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	user, pass := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			pass = p
		}
	}
	if err := conn.Login(user, pass); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp retr: %w", err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
