package types

import (
	"path/filepath"
	"strings"
)

// MediaKind tags the background visual of a scene.
type MediaKind uint8

const (
	MediaAbsent MediaKind = iota
	MediaImage
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	default:
		return "absent"
	}
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// MediaSource is resolved once, when a scene is built, so the render path
// never inspects file names.
type MediaSource struct {
	Kind MediaKind `json:"kind"`
	Path string    `json:"path,omitempty"`
}

func NoMedia() MediaSource { return MediaSource{Kind: MediaAbsent} }

func ImageMedia(path string) MediaSource { return MediaSource{Kind: MediaImage, Path: path} }

func VideoMedia(path string) MediaSource { return MediaSource{Kind: MediaVideo, Path: path} }

// ResolveMediaSource classifies a local path by extension. Anything that is
// not a known still-image extension is treated as video.
func ResolveMediaSource(path string) MediaSource {
	path = strings.TrimSpace(path)
	if path == "" {
		return NoMedia()
	}
	if IsImagePath(path) {
		return ImageMedia(path)
	}
	return VideoMedia(path)
}

func IsImagePath(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (m MediaSource) IsAbsent() bool { return m.Kind == MediaAbsent || m.Path == "" }

// Scene is one narrated unit: script, background visual and voiceover.
// An empty ScriptText is a silent scene; an empty VoiceoverPath renders at
// the default duration without audio.
type Scene struct {
	ID            string      `json:"id"`
	ScriptText    string      `json:"script_text"`
	Media         MediaSource `json:"media"`
	VoiceoverPath string      `json:"voiceover_path,omitempty"`
}

// CaptionToken is one displayed word with its [Start, End) window in
// seconds relative to the scene start.
type CaptionToken struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (t CaptionToken) Duration() float64 { return t.End - t.Start }

// VideoUnit is an ordered list of scenes rendered into one final video.
type VideoUnit struct {
	ID     string  `json:"id"`
	Scenes []Scene `json:"scenes"`
}

// BackgroundTrack is applied once to a finished video.
type BackgroundTrack struct {
	FilePath string  `json:"file_path"`
	GainDb   float64 `json:"gain_db"`
}

// SceneResult reports the outcome of rendering one scene.
type SceneResult struct {
	SceneID string
	Path    string
	Err     error
}
