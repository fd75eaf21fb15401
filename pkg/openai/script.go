package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reels-generator/internal/types"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"reels-generator/pkg/retry"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// GenerateScript asks the chat model for sceneCount narrations about topic.
// Rate-limited models are recorded in the usage store and rotated out.
func (c *Client) GenerateScript(ctx context.Context, topic string, sceneCount int) ([]string, error) {
	if strings.TrimSpace(topic) == "" || sceneCount <= 0 {
		return nil, apperrors.ErrInvalidParams
	}

	lines, err := retry.DoValue(ctx, c.Retry, "generate script", func(ctx context.Context) ([]string, error) {
		model, err := c.pickModel(ctx)
		if err != nil {
			return nil, retry.Permanent(apperrors.Wrap(apperrors.CodeLLMQuotaExceeded, "no model available", err))
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(types.ScriptSystemPrompt, sceneCount)},
				{Role: openai.ChatMessageRoleUser, Content: topic},
			},
			Temperature: 0.8,
		})
		c.recordUsage(ctx, model, isRateLimited(err))
		if err != nil {
			log.GetLogger().Warn("script generation call failed", zap.String("model", model), zap.Error(err))
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("model returned no choices")
		}
		return ParseScript(resp.Choices[0].Message.Content)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeScriptFailed, "script generation failed", err)
	}
	return lines, nil
}

func (c *Client) pickModel(ctx context.Context) (string, error) {
	if c.Usage == nil || len(c.Models) == 1 {
		return c.Models[0], nil
	}
	return c.Usage.BestModel(ctx, c.Models)
}

func (c *Client) recordUsage(ctx context.Context, model string, exceeded bool) {
	if c.Usage == nil {
		return
	}
	if err := c.Usage.RecordUsage(ctx, model, exceeded); err != nil {
		log.GetLogger().Warn("failed to record model usage", zap.String("model", model), zap.Error(err))
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// ParseScript reads the model reply as a JSON array of strings. Replies
// that are not JSON fall back to one scene per non-empty line.
func ParseScript(reply string) ([]string, error) {
	var scenes []string
	if err := json.Unmarshal([]byte(scriptArray(reply)), &scenes); err != nil {
		scenes = nil
		for _, line := range strings.Split(reply, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
			if line != "" {
				scenes = append(scenes, line)
			}
		}
	}

	out := scenes[:0]
	for _, s := range scenes {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model reply contained no scenes")
	}
	return out, nil
}

// scriptArray cuts the JSON array out of a reply that may wrap it in a
// markdown fence or surrounding prose.
func scriptArray(reply string) string {
	if _, fenced, ok := strings.Cut(reply, "```"); ok {
		fenced = strings.TrimPrefix(fenced, "json")
		if body, _, ok := strings.Cut(fenced, "```"); ok {
			reply = body
		}
	}
	start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return reply
	}
	return reply[start : end+1]
}
