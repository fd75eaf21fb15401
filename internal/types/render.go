package types

// RenderConfig is the global output format of rendered scenes.
type RenderConfig struct {
	Width      int
	Height     int
	FPS        int
	VideoCodec string
	AudioCodec string
	CRF        int

	FontPath     string
	FontSize     int
	FontColor    string
	OutlineColor string
	OutlineWidth int

	BrandText     string
	BrandFontSize int
	BrandOpacity  float64
	BrandY        float64 // top of the brand line, as a fraction of frame height

	ZoomFactor      float64
	DefaultDuration float64 // used when a scene has no voiceover
}

func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
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
	}
}

// WithDefaults fills zero fields from DefaultRenderConfig.
func (c RenderConfig) WithDefaults() RenderConfig {
	d := DefaultRenderConfig()
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.FPS <= 0 {
		c.FPS = d.FPS
	}
	if c.VideoCodec == "" {
		c.VideoCodec = d.VideoCodec
	}
	if c.AudioCodec == "" {
		c.AudioCodec = d.AudioCodec
	}
	if c.CRF <= 0 {
		c.CRF = d.CRF
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	if c.FontColor == "" {
		c.FontColor = d.FontColor
	}
	if c.OutlineColor == "" {
		c.OutlineColor = d.OutlineColor
	}
	if c.BrandFontSize <= 0 {
		c.BrandFontSize = d.BrandFontSize
	}
	if c.BrandOpacity <= 0 {
		c.BrandOpacity = d.BrandOpacity
	}
	if c.BrandY <= 0 {
		c.BrandY = d.BrandY
	}
	if c.ZoomFactor < 1 {
		c.ZoomFactor = d.ZoomFactor
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = d.DefaultDuration
	}
	return c
}
