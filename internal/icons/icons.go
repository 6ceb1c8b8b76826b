// Package icons keeps a disk cache of weather condition icons, downloading
// each code at most once.
package icons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"edashboard/internal/config"
	appLog "edashboard/internal/log"
)

const maxIconBytes = 1 << 20

// Resolver maps an icon code to a local PNG path.
type Resolver struct {
	client  *http.Client
	dir     string
	baseURL string
	offline bool
}

// Options configures a Resolver.
type Options struct {
	Dir     string
	BaseURL string
	Timeout time.Duration
	// Offline disables downloads; only already cached icons resolve.
	Offline bool
}

// NewResolver creates a Resolver. The cache directory is created lazily.
func NewResolver(opts Options) *Resolver {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		client:  &http.Client{Timeout: timeout},
		dir:     opts.Dir,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		offline: opts.Offline,
	}
}

// Path returns where code would be cached, without checking existence.
func (r *Resolver) Path(code string) string {
	return filepath.Join(r.dir, code+".png")
}

// Resolve returns the cached icon path for code, downloading it first when
// needed. ok is false when no icon is available; nothing is written to the
// cache in that case.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, bool) {
	if !validCode(code) {
		appLog.Warn("icon code rejected", "code", code)
		return "", false
	}

	path := r.Path(code)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
		return path, true
	}

	if r.offline {
		appLog.Debug("icon not cached (offline)", "code", code)
		return "", false
	}

	if err := r.download(ctx, code, path); err != nil {
		appLog.Error("icon download failed", err, "code", code)
		return "", false
	}
	appLog.Info("icon cached", "code", code, "path", path)
	return path, true
}

func (r *Resolver) download(ctx context.Context, code, path string) error {
	url := r.baseURL + "/" + code + ".png"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(body)); err != nil {
		return fmt.Errorf("not a png: %w", err)
	}

	return config.WriteFileAtomic(path, body, 0o644)
}

// validCode rejects empty codes and anything that could escape the cache
// directory.
func validCode(code string) bool {
	if code == "" || code == "." || code == ".." {
		return false
	}
	return !strings.ContainsAny(code, `/\`) && !strings.Contains(code, "..")
}
