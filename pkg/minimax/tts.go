package minimax

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/log"
	"reels-generator/pkg/retry"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.minimax.chat/v1/t2a_v2"
	DefaultVoice   = "male-qn-qingse"

	statusRateLimited = 1002
)

// MiniMaxClient synthesizes speech with the MiniMax t2a_v2 API.
type MiniMaxClient struct {
	ApiKey  string
	GroupId string
	Model   string
	BaseURL string
	Retry   retry.Policy

	http *resty.Client
}

func NewMiniMaxClient(apiKey, groupId, model string) *MiniMaxClient {
	if model == "" {
		model = "speech-01-turbo"
	}
	return &MiniMaxClient{
		ApiKey:  apiKey,
		GroupId: groupId,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Retry:   retry.DefaultPolicy(),
		http:    resty.New().SetTimeout(60 * time.Second),
	}
}

type T2ARequest struct {
	Model        string       `json:"model"`
	Text         string       `json:"text"`
	VoiceSetting VoiceSetting `json:"voice_setting"`
	AudioSetting AudioSetting `json:"audio_setting"`
	Stream       bool         `json:"stream"`
}

type VoiceSetting struct {
	VoiceId string `json:"voice_id"`
}

type AudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
	Channel    int    `json:"channel"`
}

type T2AResponse struct {
	BaseResp BaseResp `json:"base_resp"`
	Data     struct {
		Audio  string `json:"audio"` // hex encoded
		Status int    `json:"status"`
	} `json:"data"`
}

type BaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

func (c *MiniMaxClient) Synthesize(ctx context.Context, text, voice, outputFile string) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	if voice == "" {
		voice = DefaultVoice
	}

	reqBody := T2ARequest{
		Model:        c.Model,
		Text:         text,
		VoiceSetting: VoiceSetting{VoiceId: voice},
		AudioSetting: AudioSetting{SampleRate: 32000, Format: "mp3", Channel: 1},
	}

	return retry.Do(ctx, c.Retry, "minimax tts", func(ctx context.Context) error {
		var apiResp T2AResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetAuthToken(c.ApiKey).
			SetQueryParam("GroupId", c.GroupId).
			SetBody(reqBody).
			SetResult(&apiResp).
			Post(c.BaseURL)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("api request failed with status: %d, body: %s", resp.StatusCode(), resp.String())
		}

		if apiResp.BaseResp.StatusCode != 0 {
			err := fmt.Errorf("minimax api error: %d - %s", apiResp.BaseResp.StatusCode, apiResp.BaseResp.StatusMsg)
			if apiResp.BaseResp.StatusCode == statusRateLimited {
				return err
			}
			return retry.Permanent(err)
		}
		if apiResp.Data.Audio == "" {
			return fmt.Errorf("minimax returned empty audio")
		}

		audio, err := hex.DecodeString(apiResp.Data.Audio)
		if err != nil {
			return retry.Permanent(fmt.Errorf("decode hex audio failed: %w", err))
		}
		if err := os.WriteFile(outputFile, audio, 0o644); err != nil {
			return retry.Permanent(fmt.Errorf("write output file failed: %w", err))
		}

		log.GetLogger().Info("MiniMax TTS success", zap.String("output", outputFile), zap.Int("bytes", len(audio)))
		return nil
	})
}
