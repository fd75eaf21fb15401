package types

import "context"

// TextGenerator writes narration for a topic, one entry per scene.
type TextGenerator interface {
	GenerateScript(ctx context.Context, topic string, sceneCount int) ([]string, error)
}

// VoiceSynthesizer renders text to an audio file at outputPath.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text, voice, outputPath string) error
}

type StockKind string

const (
	StockPhoto StockKind = "photo"
	StockVideo StockKind = "video"
)

// StockMediaSearch returns a downloadable URL for the best match of query.
type StockMediaSearch interface {
	Search(ctx context.Context, query string, kind StockKind) (string, error)
}

// ImageGenerator renders a prompt to an image file at outputPath.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, outputPath string) error
}

// MediaFetcher downloads a remote file into dir and returns the local path.
type MediaFetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// Uploader publishes a finished file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// UsageStore keeps per-model rate-limit bookkeeping across runs.
type UsageStore interface {
	RecordUsage(ctx context.Context, modelID string, exceeded bool) error
	Exceeded(ctx context.Context, modelID string) (bool, error)
	BestModel(ctx context.Context, candidates []string) (string, error)
	Close() error
}

// SceneRenderer writes one scene clip to outputPath.
type SceneRenderer interface {
	RenderScene(ctx context.Context, scene Scene, outputPath string) (string, error)
}

// ClipAssembler joins rendered clips in order into one video.
type ClipAssembler interface {
	Concatenate(ctx context.Context, clipPaths []string, outputPath string) (string, error)
}

// AudioMixer lays a background track under a finished video. It returns ""
// with an error when mixing fails; callers keep the original video.
type AudioMixer interface {
	MixBackgroundAudio(ctx context.Context, videoPath string, track BackgroundTrack, outputPath string) (string, error)
}
