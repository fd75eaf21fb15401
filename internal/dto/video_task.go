package dto

import "reels-generator/internal/types"

// SceneReq 单个场景
type SceneReq struct {
	Id          string            `json:"id"`
	ScriptText  string            `json:"script_text"`
	MediaOrigin types.MediaOrigin `json:"media_origin"` // file | url | stock | generate
	MediaRef    string            `json:"media_ref"`    // path, url, search query or image prompt
	StockKind   types.StockKind   `json:"stock_kind,omitempty"`
}

type MusicReq struct {
	Enabled bool     `json:"enabled"`
	Path    string   `json:"path"` // empty picks a random track from the music dir
	GainDb  *float64 `json:"gain_db,omitempty"`
}

// StartVideoTaskReq 创建视频任务. Either Scenes or Topic must be set; with a
// topic the narration is generated and every scene searches stock media
// for its own text.
type StartVideoTaskReq struct {
	Project     string     `json:"project"`
	VideoId     string     `json:"video_id"`
	Topic       string     `json:"topic"`
	SceneCount  int        `json:"scene_count"`
	Voice       string     `json:"voice"`
	Scenes      []SceneReq `json:"scenes"`
	Music       MusicReq   `json:"music"`
	Upload      bool       `json:"upload"`
	ReuseTaskId string     `json:"-"`
}

type StartVideoTaskResData struct {
	TaskId string `json:"task_id"`
}

type GetVideoTaskReq struct {
	TaskId string `form:"taskId" binding:"required"`
}

type SceneResData struct {
	SceneId      string `json:"scene_id"`
	Position     int    `json:"position"`
	ScriptText   string `json:"script_text"`
	Status       string `json:"status"`
	FailReason   string `json:"fail_reason,omitempty"`
	DownloadPath string `json:"download_path,omitempty"`
}

type VideoTaskResData struct {
	TaskId            string         `json:"task_id"`
	Project           string         `json:"project"`
	VideoId           string         `json:"video_id"`
	Status            string         `json:"status"`
	StatusMsg         string         `json:"status_msg"`
	FailReason        string         `json:"fail_reason,omitempty"`
	ProcessPercent    uint8          `json:"process_percent"`
	DownloadPath      string         `json:"download_path,omitempty"`
	MixedDownloadPath string         `json:"mixed_download_path,omitempty"`
	UploadUrl         string         `json:"upload_url,omitempty"`
	Scenes            []SceneResData `json:"scenes"`
	CreateTime        int64          `json:"create_time"`
}

type UploadFileResData struct {
	FilePath []string `json:"file_path"`
}
