// Package pollinations renders prompts to images with image.pollinations.ai.
package pollinations

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"reels-generator/pkg/retry"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://image.pollinations.ai"

type Client struct {
	BaseURL string
	Width   int
	Height  int
	Model   string
	Retry   retry.Policy

	http *resty.Client
}

func NewClient(baseURL string, width, height int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Width:   width,
		Height:  height,
		Model:   "flux",
		Retry:   retry.DefaultPolicy(),
		http:    resty.New().SetTimeout(3 * time.Minute),
	}
}

// ImageURL builds the generation URL for prompt.
func (c *Client) ImageURL(prompt string, seed int) string {
	q := url.Values{}
	q.Set("width", strconv.Itoa(c.Width))
	q.Set("height", strconv.Itoa(c.Height))
	q.Set("seed", strconv.Itoa(seed))
	q.Set("model", c.Model)
	q.Set("nologo", "true")
	q.Set("private", "true")
	q.Set("safe", "true")
	return fmt.Sprintf("%s/prompt/%s?%s", c.BaseURL, url.PathEscape(prompt), q.Encode())
}

// GenerateImage writes the image for prompt to outputFile.
func (c *Client) GenerateImage(ctx context.Context, prompt, outputFile string) error {
	if strings.TrimSpace(prompt) == "" {
		return apperrors.ErrInvalidParams
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return err
	}

	err := retry.Do(ctx, c.Retry, "pollinations image", func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetOutput(outputFile).
			Get(c.ImageURL(prompt, rand.Intn(999999999)+1))
		if err != nil {
			_ = os.Remove(outputFile)
			return err
		}
		if resp.IsError() {
			_ = os.Remove(outputFile)
			return fmt.Errorf("pollinations status %d", resp.StatusCode())
		}
		if !strings.HasPrefix(resp.Header().Get("Content-Type"), "image/") {
			_ = os.Remove(outputFile)
			return fmt.Errorf("pollinations returned %q instead of an image", resp.Header().Get("Content-Type"))
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeImageGenFailed, "image generation failed", err)
	}
	log.GetLogger().Info("image generated", zap.String("output", outputFile))
	return nil
}
