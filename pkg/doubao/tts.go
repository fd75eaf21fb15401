package doubao

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reels-generator/log"
	"reels-generator/pkg/retry"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://openspeech.bytedance.com/api/v3/tts/unidirectional"
	DefaultVoice   = "en_male_glen_emo_v2_mars_bigtts"

	codeSuccess = 20000000
)

// DoubaoClient synthesizes speech with the Volcengine V3 streaming API.
type DoubaoClient struct {
	AppId       string
	AccessToken string
	Cluster     string
	ResourceId  string
	BaseURL     string
	Retry       retry.Policy

	http *resty.Client
}

func NewDoubaoClient(appId, accessToken, cluster string) *DoubaoClient {
	if cluster == "" {
		cluster = "volcano_tts"
	}
	return &DoubaoClient{
		AppId:       appId,
		AccessToken: accessToken,
		Cluster:     cluster,
		ResourceId:  "seed-tts-1.0",
		BaseURL:     DefaultBaseURL,
		Retry:       retry.DefaultPolicy(),
		http:        resty.New().SetTimeout(60 * time.Second),
	}
}

type DoubaoTTSRequest struct {
	User      DoubaoUser      `json:"user"`
	ReqParams DoubaoReqParams `json:"req_params"`
}

type DoubaoUser struct {
	Uid string `json:"uid"`
}

type DoubaoReqParams struct {
	Text        string            `json:"text"`
	Speaker     string            `json:"speaker"`
	AudioParams DoubaoAudioParams `json:"audio_params"`
}

type DoubaoAudioParams struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

// DoubaoTTSResponse is one chunk of the streamed reply.
type DoubaoTTSResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"` // base64 audio
}

func (c *DoubaoClient) Synthesize(ctx context.Context, text, voice, outputFile string) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	if voice == "" {
		voice = DefaultVoice
	}

	reqBody := DoubaoTTSRequest{
		User: DoubaoUser{Uid: "reels_" + uuid.New().String()[:8]},
		ReqParams: DoubaoReqParams{
			Text:        text,
			Speaker:     voice,
			AudioParams: DoubaoAudioParams{Format: "mp3", SampleRate: 24000},
		},
	}

	return retry.Do(ctx, c.Retry, "doubao tts", func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Api-App-Key", c.AppId).
			SetHeader("X-Api-Access-Key", c.AccessToken).
			SetHeader("X-Api-Resource-Id", c.ResourceId).
			SetHeader("Content-Type", "application/json").
			SetBody(reqBody).
			Post(c.BaseURL)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		if resp.IsError() {
			err := fmt.Errorf("doubao status %d: %s", resp.StatusCode(), resp.String())
			if resp.StatusCode() < 500 && resp.StatusCode() != 429 {
				return retry.Permanent(err)
			}
			return err
		}

		audio, err := DecodeStream(resp.Body())
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputFile, audio, 0o644); err != nil {
			return retry.Permanent(fmt.Errorf("write output file failed: %w", err))
		}

		log.GetLogger().Info("Doubao TTS success", zap.String("output", outputFile), zap.Int("total_bytes", len(audio)))
		return nil
	})
}

// DecodeStream joins the audio chunks of a streamed reply. The stream is a
// sequence of JSON objects.
func DecodeStream(body []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	var audio bytes.Buffer
	for {
		var chunk DoubaoTTSResponse
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode response stream failed: %w", err)
		}
		if chunk.Code != 0 && chunk.Code != codeSuccess && chunk.Data == "" {
			return nil, fmt.Errorf("doubao api error %d: %s", chunk.Code, chunk.Message)
		}
		if chunk.Data != "" {
			b, err := base64.StdEncoding.DecodeString(chunk.Data)
			if err != nil {
				return nil, fmt.Errorf("decode base64 chunk failed: %w", err)
			}
			audio.Write(b)
		}
	}
	if audio.Len() == 0 {
		return nil, errors.New("doubao returned no audio data")
	}
	return audio.Bytes(), nil
}
