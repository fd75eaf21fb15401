package service

import (
	"reels-generator/config"
	"reels-generator/internal/appcore"
	"reels-generator/internal/media"
	"reels-generator/internal/mixer"
	"reels-generator/internal/render"
	"reels-generator/internal/sequence"
	"reels-generator/internal/storage"
	"reels-generator/internal/types"
	"reels-generator/log"
	"reels-generator/pkg/openai"
	"reels-generator/pkg/oss"
	"reels-generator/pkg/pexels"
	"reels-generator/pkg/pollinations"
	"reels-generator/pkg/tts"
	"reels-generator/pkg/util"
	"time"

	"go.uber.org/zap"
)

const (
	FailurePolicySkip  = "skip"
	FailurePolicyAbort = "abort"
)

type Service struct {
	ScriptWriter types.TextGenerator
	TtsClient    types.VoiceSynthesizer
	StockSearch  types.StockMediaSearch
	ImageGen     types.ImageGenerator
	Fetcher      types.MediaFetcher
	Uploader     types.Uploader // nil when upload is disabled
	Renderer     types.SceneRenderer
	Assembler    types.ClipAssembler
	Mixer        types.AudioMixer
	Usage        types.UsageStore
	Events       *appcore.Bus

	RenderConcurrency int
	FailurePolicy     string
	DefaultVoice      string
	MusicDir          string
	MusicGainDb       float64
	MusicSuffix       string
}

func NewService() *Service {
	conf := config.Conf
	retryPolicy := conf.Retry.Policy()
	runner := media.NewExecutor().WithThreads(conf.Render.Threads)
	renderCfg := conf.Render.RenderConfig().WithDefaults()

	var usage types.UsageStore
	if storage.DB != nil {
		usage = storage.NewDBUsageStore(storage.DB, conf.Llm.PerMinute)
	} else {
		usage = storage.NewMemoryUsageStore(conf.Llm.PerMinute)
	}

	scriptWriter := openai.NewClient(conf.Llm.BaseUrl, conf.Llm.ApiKey, conf.App.ParsedProxy)
	scriptWriter.Models = conf.Llm.ModelCandidates()
	scriptWriter.Usage = usage
	scriptWriter.Retry = retryPolicy

	stock := pexels.NewClient(conf.Media.PexelsApiKey, conf.Media.PexelsBaseUrl)
	stock.Retry = retryPolicy

	images := pollinations.NewClient(conf.Media.PollinationsBaseUrl, renderCfg.Width, renderCfg.Height)
	images.Retry = retryPolicy

	fetcher := util.NewDownloader(time.Duration(conf.Media.DownloadTimeoutSec)*time.Second, conf.App.ParsedProxy)
	fetcher.Retry = retryPolicy

	ttsClient := tts.NewCompositeTtsClient()

	svc := &Service{
		ScriptWriter:      scriptWriter,
		TtsClient:         ttsClient,
		StockSearch:       stock,
		ImageGen:          images,
		Fetcher:           fetcher,
		Renderer:          render.NewRenderer(runner, renderCfg),
		Assembler:         sequence.NewAssembler(runner, renderCfg),
		Mixer:             mixer.NewMixer(runner, renderCfg.AudioCodec),
		Usage:             usage,
		Events:            appcore.NewBus(),
		RenderConcurrency: conf.App.RenderConcurrency,
		FailurePolicy:     conf.App.SceneFailurePolicy,
		DefaultVoice:      conf.Tts.Voice,
		MusicDir:          conf.Music.Dir,
		MusicGainDb:       conf.Music.GainDb,
		MusicSuffix:       conf.Music.Suffix,
	}
	if conf.Upload.Enabled {
		svc.Uploader = oss.NewUploader(oss.Options{
			AccessKeyId:     conf.Upload.Oss.AccessKeyId,
			AccessKeySecret: conf.Upload.Oss.AccessKeySecret,
			Bucket:          conf.Upload.Oss.Bucket,
			Region:          conf.Upload.Oss.Region,
			Endpoint:        conf.Upload.Oss.Endpoint,
			Prefix:          conf.Upload.Oss.Prefix,
		})
	}

	log.GetLogger().Info("service initialized",
		zap.String("tts_provider", conf.Tts.Provider),
		zap.Strings("tts_registered", ttsClient.Providers()),
		zap.Strings("llm_models", scriptWriter.Models),
		zap.Int("render_concurrency", svc.RenderConcurrency),
		zap.Bool("upload", svc.Uploader != nil))
	return svc
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.Usage == nil {
		return nil
	}
	return s.Usage.Close()
}
