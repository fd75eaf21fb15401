package types

import "time"

type VideoTaskStatus uint8

const (
	VideoTaskStatusPending VideoTaskStatus = iota
	VideoTaskStatusProcessing
	VideoTaskStatusSuccess
	VideoTaskStatusFailed
)

func (s VideoTaskStatus) String() string {
	switch s {
	case VideoTaskStatusPending:
		return "pending"
	case VideoTaskStatusProcessing:
		return "processing"
	case VideoTaskStatusSuccess:
		return "success"
	case VideoTaskStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type SceneTaskStatus uint8

const (
	SceneTaskStatusPending SceneTaskStatus = iota
	SceneTaskStatusRendered
	SceneTaskStatusSkipped
	SceneTaskStatusFailed
)

func (s SceneTaskStatus) String() string {
	switch s {
	case SceneTaskStatusPending:
		return "pending"
	case SceneTaskStatusRendered:
		return "rendered"
	case SceneTaskStatusSkipped:
		return "skipped"
	case SceneTaskStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MediaOrigin says where a scene's visual comes from before it is resolved
// to a local file.
type MediaOrigin string

const (
	MediaOriginNone     MediaOrigin = ""
	MediaOriginFile     MediaOrigin = "file"
	MediaOriginURL      MediaOrigin = "url"
	MediaOriginStock    MediaOrigin = "stock"
	MediaOriginGenerate MediaOrigin = "generate"
)

type VideoTask struct {
	Id           uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId       string          `json:"task_id" gorm:"uniqueIndex;size:64"`
	Project      string          `json:"project"`
	ProjectDir   string          `json:"project_dir"`
	VideoId      string          `json:"video_id"`
	Topic        string          `json:"topic"`
	SceneCount   int             `json:"scene_count"`
	Voice        string          `json:"voice"`
	MusicPath    string          `json:"music_path"`
	MusicEnabled bool            `json:"music_enabled"`
	MusicGainDb  float64         `json:"music_gain_db"`
	Upload       bool            `json:"upload"`
	Status       VideoTaskStatus `json:"status"`
	StatusMsg    string          `json:"status_msg"`
	FailReason   string          `json:"fail_reason"`
	Progress     uint8           `json:"progress"`
	OutputPath   string          `json:"output_path"`
	MixedPath    string          `json:"mixed_path"`
	UploadUrl    string          `json:"upload_url"`
	Scenes       []SceneTask     `json:"scenes" gorm:"foreignKey:TaskId;references:TaskId;constraint:OnDelete:CASCADE"`
	CreateTime   int64           `json:"create_time" gorm:"autoCreateTime"`
	UpdateTime   int64           `json:"update_time" gorm:"autoUpdateTime"`
}

type SceneTask struct {
	Id            uint64          `json:"id" gorm:"primaryKey;autoIncrement"`
	TaskId        string          `json:"task_id" gorm:"index;size:64"`
	SceneId       string          `json:"scene_id"`
	Position      int             `json:"position"`
	ScriptText    string          `json:"script_text"`
	MediaOrigin   MediaOrigin     `json:"media_origin"`
	MediaRef      string          `json:"media_ref"`
	StockKind     StockKind       `json:"stock_kind"`
	MediaPath     string          `json:"media_path"`
	VoiceoverPath string          `json:"voiceover_path"`
	ClipPath      string          `json:"clip_path"`
	Status        SceneTaskStatus `json:"status"`
	FailReason    string          `json:"fail_reason"`
}

// ApiUsage is one call against a rate-limited model.
type ApiUsage struct {
	Id        uint64    `gorm:"primaryKey;autoIncrement"`
	ModelId   string    `gorm:"index;size:128"`
	Exceeded  bool      `gorm:"default:false"`
	CreatedAt time.Time `gorm:"index"`
}
