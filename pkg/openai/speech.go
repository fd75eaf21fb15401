package openai

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reels-generator/log"
	"reels-generator/pkg/retry"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Synthesize renders text with the OpenAI speech endpoint into an mp3 at
// outputFile.
func (c *Client) Synthesize(ctx context.Context, text, voice, outputFile string) error {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("create output dir failed: %w", err)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}

	return retry.Do(ctx, c.Retry, "openai speech", func(ctx context.Context) error {
		resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(c.TTSModel),
			Input:          text,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormatMp3,
		})
		if err != nil {
			return err
		}
		defer resp.Close()

		f, err := os.Create(outputFile)
		if err != nil {
			return retry.Permanent(fmt.Errorf("create output file failed: %w", err))
		}
		n, err := io.Copy(f, resp)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(outputFile)
			return fmt.Errorf("write speech failed: %w", err)
		}

		log.GetLogger().Info("OpenAI TTS success", zap.String("output", outputFile), zap.Int64("bytes", n))
		return nil
	})
}
