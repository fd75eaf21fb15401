package util

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"reels-generator/log"
	"reels-generator/pkg/retry"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Downloader fetches remote media into local directories.
type Downloader struct {
	client *resty.Client
	Retry  retry.Policy
}

func NewDownloader(timeout time.Duration, proxy *url.URL) *Downloader {
	client := resty.New().SetTimeout(timeout)
	if proxy != nil {
		client.SetProxy(proxy.String())
	}
	return &Downloader{client: client, Retry: retry.DefaultPolicy()}
}

// Fetch downloads rawURL into dir under a unique name and returns the path.
// The extension comes from the URL, or from the Content-Type when the URL
// has none.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid media url %q", rawURL)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(u.Path))
	target := filepath.Join(dir, uuid.New().String()[:8]+ext)

	err = retry.Do(ctx, d.Retry, "download "+rawURL, func(ctx context.Context) error {
		resp, err := d.client.R().SetContext(ctx).SetOutput(target).Get(rawURL)
		if err != nil {
			_ = os.Remove(target)
			return err
		}
		if resp.IsError() {
			_ = os.Remove(target)
			err := fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode())
			if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}
		if ext == "" {
			if exts, _ := mime.ExtensionsByType(resp.Header().Get("Content-Type")); len(exts) > 0 {
				renamed := target + exts[0]
				if err := os.Rename(target, renamed); err == nil {
					target = renamed
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.GetLogger().Info("media downloaded", zap.String("url", rawURL), zap.String("path", target))
	return target, nil
}
