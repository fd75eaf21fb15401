// Package pexels searches the Pexels stock photo and video library.
package pexels

import (
	"context"
	"fmt"
	"net/http"
	"reels-generator/internal/types"
	apperrors "reels-generator/pkg/errors"
	"reels-generator/pkg/retry"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
)

const DefaultBaseURL = "https://api.pexels.com"

type Client struct {
	BaseURL     string
	Orientation string
	Retry       retry.Policy

	http *resty.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Orientation: "portrait",
		Retry:       retry.DefaultPolicy(),
		http:        resty.New().SetTimeout(30*time.Second).SetHeader("Authorization", apiKey),
	}
}

type photoSearch struct {
	Photos []struct {
		ID  int64             `json:"id"`
		Src map[string]string `json:"src"`
	} `json:"photos"`
}

type VideoFile struct {
	Link    string `json:"link"`
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type videoSearch struct {
	Videos []struct {
		ID         int64       `json:"id"`
		VideoFiles []VideoFile `json:"video_files"`
	} `json:"videos"`
}

// Search returns the download URL of the best match for query.
func (c *Client) Search(ctx context.Context, query string, kind types.StockKind) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", apperrors.ErrInvalidParams
	}
	link, err := retry.DoValue(ctx, c.Retry, "pexels search", func(ctx context.Context) (string, error) {
		switch kind {
		case types.StockPhoto:
			return c.searchPhoto(ctx, query)
		case types.StockVideo:
			return c.searchVideo(ctx, query)
		default:
			return "", retry.Permanent(fmt.Errorf("unknown stock kind %q", kind))
		}
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStockSearch, fmt.Sprintf("stock search %q", query), err)
	}
	return link, nil
}

func (c *Client) get(ctx context.Context, path, query string, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       query,
			"per_page":    "5",
			"orientation": c.Orientation,
		}).
		SetResult(result).
		Get(c.BaseURL + path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		err := fmt.Errorf("pexels status %d", resp.StatusCode())
		if resp.StatusCode() != http.StatusTooManyRequests && resp.StatusCode() < 500 {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}

func (c *Client) searchPhoto(ctx context.Context, query string) (string, error) {
	var res photoSearch
	if err := c.get(ctx, "/v1/search", query, &res); err != nil {
		return "", err
	}
	for _, p := range res.Photos {
		if link, ok := lo.Coalesce(p.Src["portrait"], p.Src["large2x"], p.Src["original"]); ok {
			return link, nil
		}
	}
	return "", retry.Permanent(fmt.Errorf("no photo found for %q", query))
}

func (c *Client) searchVideo(ctx context.Context, query string) (string, error) {
	var res videoSearch
	if err := c.get(ctx, "/videos/search", query, &res); err != nil {
		return "", err
	}
	for _, v := range res.Videos {
		if f, ok := PickVideoFile(v.VideoFiles, 1080); ok {
			return f.Link, nil
		}
	}
	return "", retry.Permanent(fmt.Errorf("no video found for %q", query))
}

// PickVideoFile prefers portrait renditions, then the one whose width is
// closest to targetWidth.
func PickVideoFile(files []VideoFile, targetWidth int) (VideoFile, bool) {
	candidates := lo.Filter(files, func(f VideoFile, _ int) bool { return f.Link != "" })
	if len(candidates) == 0 {
		return VideoFile{}, false
	}
	score := func(f VideoFile) int {
		s := abs(f.Width - targetWidth)
		if f.Height < f.Width {
			s += 100000
		}
		return s
	}
	return lo.MinBy(candidates, func(a, b VideoFile) bool { return score(a) < score(b) }), true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
