package tts

import (
	"context"
	"errors"
	"fmt"
	"reels-generator/config"
	"reels-generator/internal/types"
	"reels-generator/log"
	"reels-generator/pkg/doubao"
	apperrors "reels-generator/pkg/errors"
	"reels-generator/pkg/minimax"
	"reels-generator/pkg/openai"

	"go.uber.org/zap"
)

const voiceTypoDistance = 2

type namedProvider struct {
	name  string
	synth types.VoiceSynthesizer
}

// CompositeTtsClient routes a voice to the provider that owns it and falls
// back through the other configured providers, with their default voices,
// when that fails.
type CompositeTtsClient struct {
	providers []namedProvider
	catalog   *Catalog
	primary   string
}

func NewCompositeTtsClient() *CompositeTtsClient {
	c := &CompositeTtsClient{catalog: NewCatalog(), primary: config.Conf.Tts.Provider}
	retryPolicy := config.Conf.Retry.Policy()

	if config.Conf.Tts.Openai.ApiKey != "" {
		client := openai.NewClient(config.Conf.Tts.Openai.BaseUrl, config.Conf.Tts.Openai.ApiKey, config.Conf.App.ParsedProxy)
		client.TTSModel = config.Conf.Tts.Openai.Model
		client.Retry = retryPolicy
		c.Register(ProviderOpenAI, client)
	}
	if config.Conf.Tts.Doubao.AppId != "" {
		client := doubao.NewDoubaoClient(config.Conf.Tts.Doubao.AppId, config.Conf.Tts.Doubao.AccessToken, config.Conf.Tts.Doubao.Cluster)
		client.Retry = retryPolicy
		c.Register(ProviderDoubao, client)
	}
	if config.Conf.Tts.Minimax.ApiKey != "" {
		client := minimax.NewMiniMaxClient(config.Conf.Tts.Minimax.ApiKey, config.Conf.Tts.Minimax.GroupId, config.Conf.Tts.Minimax.Model)
		client.Retry = retryPolicy
		c.Register(ProviderMinimax, client)
	}
	return c
}

// NewCompositeWith builds a client over explicit providers, primary first.
func NewCompositeWith(primary string) *CompositeTtsClient {
	return &CompositeTtsClient{catalog: NewCatalog(), primary: primary}
}

func (c *CompositeTtsClient) Register(name string, synth types.VoiceSynthesizer) {
	c.providers = append(c.providers, namedProvider{name: name, synth: synth})
}

func (c *CompositeTtsClient) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.name
	}
	return names
}

// order puts the provider owning voice first, then the primary, then the rest.
func (c *CompositeTtsClient) order(owner string) []namedProvider {
	ordered := make([]namedProvider, 0, len(c.providers))
	seen := map[string]bool{}
	add := func(name string) {
		for _, p := range c.providers {
			if p.name == name && !seen[name] {
				ordered = append(ordered, p)
				seen[name] = true
			}
		}
	}
	add(owner)
	add(c.primary)
	for _, p := range c.providers {
		add(p.name)
	}
	return ordered
}

func (c *CompositeTtsClient) Synthesize(ctx context.Context, text, voice, outputFile string) error {
	if len(c.providers) == 0 {
		return apperrors.New(apperrors.CodeTTSFailed, "no tts provider configured")
	}

	owner := c.catalog.ProviderFor(voice)
	if owner == "" && voice != "" {
		// unknown names are treated as typos of the primary provider's voices
		if resolved := c.catalog.Resolve(c.primary, voice, voiceTypoDistance); resolved != voice {
			log.GetLogger().Info("voice name corrected", zap.String("requested", voice), zap.String("resolved", resolved))
			voice = resolved
			owner = c.primary
		}
	}

	var errs []error
	for i, p := range c.order(owner) {
		v := voice
		if owner != "" && p.name != owner {
			v = ""
		}
		if i > 0 {
			log.GetLogger().Warn("falling back to next tts provider", zap.String("provider", p.name))
		}
		err := p.synth.Synthesize(ctx, text, v, outputFile)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.GetLogger().Error("tts provider failed", zap.String("provider", p.name), zap.String("voice", v), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return apperrors.Wrap(apperrors.CodeTTSFailed, "all tts providers failed", errors.Join(errs...))
}
