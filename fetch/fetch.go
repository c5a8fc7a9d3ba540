// Package fetch resolves manuscript references to local files.
//
// A reference is a filesystem path, a file:// URL, or an http(s):// URL.
// Remote content is downloaded to a temp file that keeps the URL's
// extension, so format detection downstream still works. References
// ending in .xz are transparently decompressed and the inner extension
// is preserved ("voyage.docx.xz" yields a .docx temp file).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 60s.
	MaxBytes int64         // Max downloaded or decompressed size. Default: 100MB.
	// UserAgent sent with requests.
	UserAgent string
	// TempDir receives downloaded and decompressed files. Default: os.TempDir().
	TempDir string
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 100 * 1024 * 1024 // 100MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "inkwell/1.0"
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
}

// Fetcher resolves references, downloading remote ones.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch resolves ref to a readable local file. The returned cleanup
// removes any temp files Fetch created and must always be called; for a
// plain local path it is a no-op.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, func(), error) {
	var temps []string
	fail := func(err error) (string, func(), error) {
		for _, p := range temps {
			os.Remove(p)
		}
		return "", nil, err
	}

	if ref == "" {
		return fail(fmt.Errorf("empty manuscript reference"))
	}

	local := ref
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		p, err := f.download(ctx, ref)
		if err != nil {
			return fail(err)
		}
		temps = append(temps, p)
		local = p
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return fail(fmt.Errorf("parse reference %q: %w", ref, err))
		}
		local = u.Path
	}

	if _, err := os.Stat(local); err != nil {
		return fail(fmt.Errorf("manuscript %s: %w", ref, err))
	}

	if strings.EqualFold(filepath.Ext(local), ".xz") {
		p, err := f.decompress(local)
		if err != nil {
			return fail(err)
		}
		temps = append(temps, p)
		local = p
	}

	owned := temps
	cleanup := func() {
		for _, p := range owned {
			os.Remove(p)
		}
	}
	return local, cleanup, nil
}

// download retrieves a URL into a temp file, preserving the extension
// from the URL path.
func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d fetching %s", resp.StatusCode, rawURL)
	}

	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = path.Ext(u.Path)
	}
	tmp, err := os.CreateTemp(f.config.TempDir, "manuscript-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.config.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if n > f.config.MaxBytes {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download exceeds max size (%d bytes)", f.config.MaxBytes)
	}
	return tmp.Name(), nil
}

// decompress expands an .xz file into a temp file named after the inner
// extension. The output is size-capped to guard against archive bombs.
func (f *Fetcher) decompress(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	xzr, err := xz.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("xz reader: %w", err)
	}

	base := filepath.Base(src)
	inner := strings.TrimSuffix(base, filepath.Ext(base))
	tmp, err := os.CreateTemp(f.config.TempDir, "manuscript-*"+filepath.Ext(inner))
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(xzr, f.config.MaxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("decompress %s: %w", src, err)
	}
	if n > f.config.MaxBytes {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("decompressed size exceeds max (%d bytes)", f.config.MaxBytes)
	}
	return tmp.Name(), nil
}
