// Package seaweedfs provides a SeaweedFS filer-backed object backend.
package seaweedfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const (
	KeyFilerURL = "filer_url"
	KeyPrefix   = "prefix"
	KeyTimeout  = "timeout"

	listPageSize = 1000

	// modeDir is Go's os.ModeDir bit as the filer reports it.
	modeDir = 1 << 31
)

func init() {
	backend.Register("seaweedfs", NewFactory, Defaults)
}

// Defaults returns the default configuration for the SeaweedFS backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyFilerURL: "http://localhost:8888",
		KeyPrefix:   "/scs",
		KeyTimeout:  "30s",
	}
}

// NewFactory creates a new SeaweedFS backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	filerURL, err := config.Required("seaweedfs", KeyFilerURL)
	if err != nil {
		return nil, err
	}
	filerURL = strings.TrimRight(filerURL, "/")

	prefix := config.String(KeyPrefix, "/scs")
	if !strings.HasPrefix(prefix, "/") {
		return nil, storage.NewConfigErrorWithValue("seaweedfs", KeyPrefix, prefix, "must start with /")
	}
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return nil, storage.NewConfigErrorWithValue("seaweedfs", KeyPrefix, config[KeyPrefix], "must name a directory below /")
	}

	timeout, err := config.Duration("seaweedfs", KeyTimeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		},
	}

	slog.DebugContext(ctx, "seaweedfs backend initialized", "filer_url", filerURL, "prefix", prefix, "timeout", timeout)

	return &Backend{
		filerURL: filerURL,
		prefix:   prefix,
		client:   client,
	}, nil
}

// Backend is a SeaweedFS filer implementation of backend.Backend. Objects
// are files directly inside the prefix directory.
type Backend struct {
	filerURL string
	prefix   string
	client   *http.Client
	closed   atomic.Bool
}

func (b *Backend) objectURL(name string) (string, error) {
	if b.closed.Load() {
		return "", backend.ErrClosed
	}
	if err := backend.CheckName(name); err != nil {
		return "", err
	}
	return b.filerURL + b.prefix + "/" + name, nil
}

// do sends a request and returns the response with the body still open.
func (b *Backend) do(ctx context.Context, method, rawURL string, body []byte, hdr http.Header) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, r)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return b.client.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

type listEntry struct {
	FullPath string `json:"FullPath"`
	Mode     uint32 `json:"Mode"`
	FileSize int64  `json:"FileSize"`
}

type listResponse struct {
	Path                  string      `json:"Path"`
	Entries               []listEntry `json:"Entries"`
	LastFileName          string      `json:"LastFileName"`
	ShouldDisplayLoadMore bool        `json:"ShouldDisplayLoadMore"`
}

// walk pages through the prefix directory. A missing directory is empty.
func (b *Backend) walk(ctx context.Context, fn func(name string, size int64)) error {
	last := ""
	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(listPageSize))
		if last != "" {
			q.Set("lastFileName", last)
		}
		resp, err := b.do(ctx, http.MethodGet, b.filerURL+b.prefix+"/?"+q.Encode(), nil,
			http.Header{"Accept": []string{"application/json"}})
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusNotFound {
			drain(resp)
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			drain(resp)
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		var page listResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		drain(resp)
		if err != nil {
			return fmt.Errorf("decode listing: %w", err)
		}
		for _, e := range page.Entries {
			if e.Mode&modeDir != 0 {
				continue
			}
			fn(path.Base(e.FullPath), e.FileSize)
		}
		if !page.ShouldDisplayLoadMore || len(page.Entries) == 0 {
			return nil
		}
		last = page.LastFileName
	}
}

func (b *Backend) List(ctx context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var names []string
	err := b.walk(ctx, func(name string, _ int64) {
		names = append(names, name)
	})
	if err != nil {
		return nil, fmt.Errorf("seaweedfs list: %w", err)
	}
	return names, nil
}

func (b *Backend) head(ctx context.Context, name string) (int64, bool, error) {
	u, err := b.objectURL(name)
	if err != nil {
		return 0, false, err
	}
	resp, err := b.do(ctx, http.MethodHead, u, nil, nil)
	if err != nil {
		return 0, false, err
	}
	drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.ContentLength, true, nil
	case http.StatusNotFound:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	_, ok, err := b.head(ctx, name)
	if err != nil {
		return false, fmt.Errorf("seaweedfs exists: %w", err)
	}
	return ok, nil
}

func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	u, err := b.objectURL(name)
	if err != nil {
		return nil, err
	}
	resp, err := b.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("seaweedfs read: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("seaweedfs read %s: %w", name, backend.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("seaweedfs read: unexpected status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("seaweedfs read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	u, err := b.objectURL(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	resp, err := b.do(ctx, http.MethodPut, u, data,
		http.Header{"Content-Type": []string{"application/octet-stream"}})
	if err != nil {
		return fmt.Errorf("seaweedfs write: %w", err)
	}
	drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("seaweedfs write: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Rename uses the filer's server-side move (POST with mv.from).
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	if _, err := b.objectURL(from); err != nil {
		return err
	}
	dst, err := b.objectURL(to)
	if err != nil {
		return err
	}
	_, ok, err := b.head(ctx, from)
	if err != nil {
		return fmt.Errorf("seaweedfs rename: %w", err)
	}
	if !ok {
		return fmt.Errorf("seaweedfs rename %s: %w", from, backend.ErrNotFound)
	}

	q := url.Values{}
	q.Set("mv.from", b.prefix+"/"+from)
	resp, err := b.do(ctx, http.MethodPost, dst+"?"+q.Encode(), nil, nil)
	if err != nil {
		return fmt.Errorf("seaweedfs rename: %w", err)
	}
	drain(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("seaweedfs rename %s: %w", from, backend.ErrNotFound)
	default:
		return fmt.Errorf("seaweedfs rename: unexpected status %d", resp.StatusCode)
	}
}

// Remove deletes name. Idempotent: 404 is not an error.
func (b *Backend) Remove(ctx context.Context, name string) error {
	u, err := b.objectURL(name)
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, http.MethodDelete, u, nil, nil)
	if err != nil {
		return fmt.Errorf("seaweedfs remove: %w", err)
	}
	drain(resp)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("seaweedfs remove: unexpected status %d", resp.StatusCode)
}

func (b *Backend) Size(ctx context.Context, name string) (int64, error) {
	size, ok, err := b.head(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("seaweedfs size: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("seaweedfs size %s: %w", name, backend.ErrNotFound)
	}
	return size, nil
}

// Stats returns storage statistics.
func (b *Backend) Stats(ctx context.Context) (*backend.Stats, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var total int64
	if err := b.walk(ctx, func(_ string, size int64) { total += size }); err != nil {
		return nil, fmt.Errorf("seaweedfs stats: %w", err)
	}
	return &backend.Stats{
		SizeBytes:   total,
		BackendType: "seaweedfs",
	}, nil
}

// Teardown deletes the prefix directory once it holds no objects.
func (b *Backend) Teardown(ctx context.Context) error {
	names, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return fmt.Errorf("seaweedfs teardown: %d objects in %s: %w", len(names), b.prefix, backend.ErrNotEmpty)
	}
	resp, err := b.do(ctx, http.MethodDelete, b.filerURL+b.prefix+"/?recursive=false", nil, nil)
	if err != nil {
		return fmt.Errorf("seaweedfs teardown: %w", err)
	}
	drain(resp)
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("seaweedfs teardown: unexpected status %d", resp.StatusCode)
}

// Close closes idle connections.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.client.CloseIdleConnections()
	return nil
}
