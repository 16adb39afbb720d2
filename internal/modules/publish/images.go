package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	maxImageBytes  = 15 << 20
	maxImagePixels = 40_000_000
)

var (
	ErrNotImage      = errors.New("publish: not an image")
	ErrImageTooLarge = errors.New("publish: image dimensions too large")
	ErrBlockedHost   = errors.New("publish: image host not allowed")
)

// ImageFetcher loads an image referenced by a chapter.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// HTTPImageFetcher fetches images over HTTP and decodes data: URIs inline.
// The client built by NewHTTPImageFetcher refuses to connect to loopback,
// private or link-local addresses, including after redirects.
type HTTPImageFetcher struct {
	Client *http.Client
}

func NewHTTPImageFetcher(timeout time.Duration) *HTTPImageFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   publicOnly,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPImageFetcher{Client: &http.Client{Timeout: timeout, Transport: transport}}
}

// publicOnly runs after name resolution, so address is the IP being dialed.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedHost, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if strings.HasPrefix(strings.ToLower(url), "data:") {
		return decodeDataURI(url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("fetch image: larger than %d bytes", maxImageBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func decodeDataURI(uri string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, "", errors.New("malformed data uri")
	}
	ct := strings.TrimSuffix(meta, ";base64")
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), ct, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
	}
	return data, ct, err
}

// preparedImage is an image normalized to 8-bit non-interlaced PNG.
type preparedImage struct {
	PNG    []byte
	Width  int
	Height int
	Err    error
}

// prepareImage decodes data of any supported format and re-encodes it as a
// PNG that every renderer accepts. The content type is trusted only to reject
// responses that are clearly not images.
func prepareImage(data []byte, contentType string) preparedImage {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		sniffed := http.DetectContentType(data)
		if !strings.HasPrefix(sniffed, "image/") {
			return preparedImage{Err: fmt.Errorf("%w: %s", ErrNotImage, ct)}
		}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return preparedImage{Err: fmt.Errorf("decode image: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return preparedImage{Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return preparedImage{Err: fmt.Errorf("decode image: %w", err)}
	}
	b := img.Bounds()
	rgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return preparedImage{Err: fmt.Errorf("encode image: %w", err)}
	}
	return preparedImage{PNG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}
}

// prefetchImages loads every url concurrently. Failures are recorded per
// image and never fail the batch.
func prefetchImages(ctx context.Context, fetcher ImageFetcher, urls []string, limit int) map[string]preparedImage {
	out := make(map[string]preparedImage, len(urls))
	if fetcher == nil || len(urls) == 0 {
		return out
	}
	if limit <= 0 {
		limit = 4
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	seen := map[string]bool{}
	for _, u := range urls {
		u := strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		g.Go(func() error {
			var p preparedImage
			data, ct, err := fetcher.Fetch(gctx, u)
			if err != nil {
				p = preparedImage{Err: err}
			} else {
				p = prepareImage(data, ct)
			}
			mu.Lock()
			out[u] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}
