package openai

import (
	"net/http"
	"net/url"
	"reels-generator/internal/types"
	"reels-generator/pkg/retry"

	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	// Models is the rotation used for script generation.
	Models   []string
	TTSModel string
	Usage    types.UsageStore
	Retry    retry.Policy
}

func NewClient(baseUrl, apiKey string, proxy *url.URL) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseUrl != "" {
		cfg.BaseURL = baseUrl
	}

	transport := &http.Transport{}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	cfg.HTTPClient = &http.Client{Transport: transport}

	return &Client{
		client:   openai.NewClientWithConfig(cfg),
		Models:   []string{openai.GPT4oMini},
		TTSModel: string(openai.TTSModel1),
		Retry:    retry.DefaultPolicy(),
	}
}
