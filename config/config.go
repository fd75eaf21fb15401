package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/types"
	"reels-generator/log"
	"reels-generator/pkg/retry"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type App struct {
	Proxy              string   `toml:"proxy"`
	ParsedProxy        *url.URL `toml:"-"`
	DefaultProject     string   `toml:"default_project"`
	RenderConcurrency  int      `toml:"render_concurrency"`
	VideoConcurrency   int      `toml:"video_concurrency"`
	SceneFailurePolicy string   `toml:"scene_failure_policy"` // skip | abort
	FfmpegPath         string   `toml:"ffmpeg_path"`
	FfprobePath        string   `toml:"ffprobe_path"`
}

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type Render struct {
	Width           int     `toml:"width"`
	Height          int     `toml:"height"`
	FPS             int     `toml:"fps"`
	VideoCodec      string  `toml:"video_codec"`
	AudioCodec      string  `toml:"audio_codec"`
	CRF             int     `toml:"crf"`
	FontPath        string  `toml:"font_path"`
	FontSize        int     `toml:"font_size"`
	FontColor       string  `toml:"font_color"`
	OutlineColor    string  `toml:"outline_color"`
	OutlineWidth    int     `toml:"outline_width"`
	BrandText       string  `toml:"brand_text"`
	BrandFontSize   int     `toml:"brand_font_size"`
	BrandOpacity    float64 `toml:"brand_opacity"`
	BrandY          float64 `toml:"brand_y"`
	ZoomFactor      float64 `toml:"zoom_factor"`
	DefaultDuration float64 `toml:"default_duration"`
	Threads         int     `toml:"threads"` // ffmpeg encoder threads, 0 lets ffmpeg decide
}

type Music struct {
	Enabled bool    `toml:"enabled"`
	Dir     string  `toml:"dir"`
	Track   string  `toml:"track"`
	GainDb  float64 `toml:"gain_db"`
	Suffix  string  `toml:"suffix"`
}

type Llm struct {
	BaseUrl   string   `toml:"base_url"`
	ApiKey    string   `toml:"api_key"`
	Model     string   `toml:"model"`
	Models    []string `toml:"models"`     // rotated when rate limited; Model is used when empty
	PerMinute int      `toml:"per_minute"` // 0 disables the local limit
}

type OpenaiTts struct {
	BaseUrl string `toml:"base_url"`
	ApiKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type DoubaoTts struct {
	AppId       string `toml:"app_id"`
	AccessToken string `toml:"access_token"`
	Cluster     string `toml:"cluster"`
}

type MinimaxTts struct {
	ApiKey  string `toml:"api_key"`
	GroupId string `toml:"group_id"`
	Model   string `toml:"model"`
}

type Tts struct {
	Provider string     `toml:"provider"`
	Voice    string     `toml:"voice"`
	Openai   OpenaiTts  `toml:"openai"`
	Doubao   DoubaoTts  `toml:"doubao"`
	Minimax  MinimaxTts `toml:"minimax"`
}

type Media struct {
	PexelsApiKey        string `toml:"pexels_api_key"`
	PexelsBaseUrl       string `toml:"pexels_base_url"`
	PollinationsBaseUrl string `toml:"pollinations_base_url"`
	DownloadTimeoutSec  int    `toml:"download_timeout_sec"`
}

type Oss struct {
	AccessKeyId     string `toml:"access_key_id"`
	AccessKeySecret string `toml:"access_key_secret"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Prefix          string `toml:"prefix"`
}

type Upload struct {
	Enabled bool `toml:"enabled"`
	Oss     Oss  `toml:"oss"`
}

type Queue struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Concurrency   int    `toml:"concurrency"`
}

type Retry struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMs int `toml:"base_delay_ms"`
	MaxDelayMs  int `toml:"max_delay_ms"`
}

type Config struct {
	App    App    `toml:"app"`
	Server Server `toml:"server"`
	Render Render `toml:"render"`
	Music  Music  `toml:"music"`
	Llm    Llm    `toml:"llm"`
	Tts    Tts    `toml:"tts"`
	Media  Media  `toml:"media"`
	Upload Upload `toml:"upload"`
	Queue  Queue  `toml:"queue"`
	Retry  Retry  `toml:"retry"`
}

var Conf = defaultConfig()

var resolveConfigPath = func() (string, error) {
	dirs, err := appdirs.Resolve()
	if err != nil {
		return "", err
	}
	return dirs.ConfigFile, nil
}

func defaultConfig() Config {
	return Config{
		App: App{
			DefaultProject:     "manual_project",
			RenderConcurrency:  2,
			VideoConcurrency:   1,
			SceneFailurePolicy: "skip",
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8888,
		},
		Render: Render{
			Width:           1080,
			Height:          1920,
			FPS:             24,
			VideoCodec:      "libx264",
			AudioCodec:      "aac",
			CRF:             20,
			FontSize:        110,
			FontColor:       "white",
			OutlineColor:    "black",
			OutlineWidth:    5,
			BrandFontSize:   50,
			BrandOpacity:    0.6,
			BrandY:          0.8,
			ZoomFactor:      1.2,
			DefaultDuration: 5.0,
		},
		Music: Music{
			GainDb: -25,
			Suffix: "_with_bg_music",
		},
		Llm: Llm{
			Model:     "gpt-4o-mini",
			PerMinute: 20,
		},
		Tts: Tts{
			Provider: "openai",
			Voice:    "alloy",
			Openai: OpenaiTts{
				Model: "tts-1",
			},
			Doubao: DoubaoTts{
				Cluster: "volcano_tts",
			},
			Minimax: MinimaxTts{
				Model: "speech-01-turbo",
			},
		},
		Media: Media{
			PexelsBaseUrl:       "https://api.pexels.com",
			PollinationsBaseUrl: "https://image.pollinations.ai",
			DownloadTimeoutSec:  120,
		},
		Queue: Queue{
			RedisAddr:   "localhost:6379",
			Concurrency: 3,
		},
		Retry: Retry{
			MaxAttempts: 3,
			BaseDelayMs: 1000,
			MaxDelayMs:  10000,
		},
	}
}

// ResolveConfigPath returns the location of config.toml.
func ResolveConfigPath() (string, error) {
	return resolveConfigPath()
}

// LoadOrCreateConfig loads the config file, writing the defaults first when
// it does not exist yet. created reports whether a new file was written.
func LoadOrCreateConfig() (created bool, err error) {
	configPath, err := resolveConfigPath()
	if err != nil {
		return false, err
	}

	if _, statErr := os.Stat(configPath); errors.Is(statErr, os.ErrNotExist) {
		Conf = defaultConfig()
		if err = SaveConfig(); err != nil {
			return false, err
		}
		created = true
	} else if statErr != nil {
		return false, statErr
	} else {
		loaded := defaultConfig()
		if _, err = toml.DecodeFile(configPath, &loaded); err != nil {
			return false, fmt.Errorf("decode config %s: %w", configPath, err)
		}
		Conf = loaded
	}

	applyEnv(&Conf)
	if err = parseProxy(&Conf); err != nil {
		return created, err
	}
	return created, nil
}

// LoadConfig is the bootstrap entry point; it logs and reports false when
// the config cannot be used.
func LoadConfig() bool {
	created, err := LoadOrCreateConfig()
	if err != nil {
		log.GetLogger().Error("加载配置失败 failed to load config", zap.Error(err))
		return false
	}
	if created {
		path, _ := resolveConfigPath()
		log.GetLogger().Info("已生成默认配置 default config written", zap.String("path", path))
	}
	return true
}

func SaveConfig() error {
	configPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(Conf)
}

// CheckConfig validates the values the render pipeline relies on.
func CheckConfig() error {
	r := Conf.Render
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.FPS <= 0 {
		return fmt.Errorf("render fps must be positive, got %d", r.FPS)
	}
	if r.ZoomFactor < 1 {
		return fmt.Errorf("zoom factor must be >= 1, got %.2f", r.ZoomFactor)
	}
	if r.BrandOpacity < 0 || r.BrandOpacity > 1 {
		return fmt.Errorf("brand opacity must be within [0,1], got %.2f", r.BrandOpacity)
	}

	switch Conf.App.SceneFailurePolicy {
	case "", "skip", "abort":
	default:
		return fmt.Errorf("unknown scene failure policy %q", Conf.App.SceneFailurePolicy)
	}

	switch Conf.Tts.Provider {
	case "openai", "doubao", "minimax":
	default:
		return fmt.Errorf("unsupported tts provider %q", Conf.Tts.Provider)
	}

	if Conf.Upload.Enabled && (Conf.Upload.Oss.Bucket == "" || Conf.Upload.Oss.Region == "") {
		return errors.New("oss upload enabled but bucket or region is empty")
	}
	return nil
}

// RenderConfig converts the [render] section into the type the render
// pipeline consumes.
func (r Render) RenderConfig() types.RenderConfig {
	return types.RenderConfig{
		Width:           r.Width,
		Height:          r.Height,
		FPS:             r.FPS,
		VideoCodec:      r.VideoCodec,
		AudioCodec:      r.AudioCodec,
		CRF:             r.CRF,
		FontPath:        r.FontPath,
		FontSize:        r.FontSize,
		FontColor:       r.FontColor,
		OutlineColor:    r.OutlineColor,
		OutlineWidth:    r.OutlineWidth,
		BrandText:       r.BrandText,
		BrandFontSize:   r.BrandFontSize,
		BrandOpacity:    r.BrandOpacity,
		BrandY:          r.BrandY,
		ZoomFactor:      r.ZoomFactor,
		DefaultDuration: r.DefaultDuration,
	}
}

func (r Retry) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(r.MaxDelayMs) * time.Millisecond,
	}
}

// ModelCandidates is the rotation list for script generation.
func (l Llm) ModelCandidates() []string {
	if len(l.Models) > 0 {
		return l.Models
	}
	return []string{l.Model}
}

// applyEnv fills secrets from .env and the process environment. Values
// already present in config.toml win.
func applyEnv(c *Config) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.GetLogger().Warn("读取 .env 失败 failed to read .env", zap.Error(err))
	}

	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.Llm.ApiKey, "OPENAI_API_KEY")
	fill(&c.Llm.BaseUrl, "OPENAI_BASE_URL")
	fill(&c.Tts.Openai.ApiKey, "OPENAI_API_KEY")
	fill(&c.Tts.Doubao.AppId, "DOUBAO_APP_ID")
	fill(&c.Tts.Doubao.AccessToken, "DOUBAO_ACCESS_TOKEN")
	fill(&c.Tts.Minimax.ApiKey, "MINIMAX_API_KEY")
	fill(&c.Tts.Minimax.GroupId, "MINIMAX_GROUP_ID")
	fill(&c.Media.PexelsApiKey, "PEXELS_API_KEY")
	fill(&c.Upload.Oss.AccessKeyId, "OSS_ACCESS_KEY_ID")
	fill(&c.Upload.Oss.AccessKeySecret, "OSS_ACCESS_KEY_SECRET")
	fill(&c.Queue.RedisPassword, "REDIS_PASSWORD")
}

func parseProxy(c *Config) error {
	c.App.ParsedProxy = nil
	if strings.TrimSpace(c.App.Proxy) == "" {
		return nil
	}
	parsed, err := url.Parse(c.App.Proxy)
	if err != nil {
		return fmt.Errorf("invalid proxy %q: %w", c.App.Proxy, err)
	}
	c.App.ParsedProxy = parsed
	return nil
}
