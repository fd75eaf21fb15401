package storage

import (
	"errors"
	"reels-generator/internal/types"

	"gorm.io/gorm"
)

var errDBNotInitialized = errors.New("database not initialized")

// SaveTask upserts task by TaskId together with its scenes.
func SaveTask(task *types.VideoTask) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		var existing types.VideoTask
		result := tx.Where("task_id = ?", task.TaskId).First(&existing)
		switch {
		case result.Error == nil:
			task.Id = existing.Id
			task.CreateTime = existing.CreateTime
			if err := tx.Omit("Scenes").Save(task).Error; err != nil {
				return err
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			if err := tx.Omit("Scenes").Create(task).Error; err != nil {
				return err
			}
		default:
			return result.Error
		}

		for i := range task.Scenes {
			task.Scenes[i].TaskId = task.TaskId
			if err := tx.Save(&task.Scenes[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func GetTask(taskId string) (*types.VideoTask, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var task types.VideoTask
	err := DB.Preload("Scenes", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Where("task_id = ?", taskId).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func GetTaskHistory(limit int) ([]types.VideoTask, error) {
	if DB == nil {
		return nil, errDBNotInitialized
	}
	var tasks []types.VideoTask
	err := DB.Preload("Scenes", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Order("create_time desc, id desc").Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func DeleteTask(taskId string) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskId).Delete(&types.SceneTask{}).Error; err != nil {
			return err
		}
		return tx.Where("task_id = ?", taskId).Delete(&types.VideoTask{}).Error
	})
}

// UpdateTaskStatus persists status and progress without touching scenes.
func UpdateTaskStatus(taskId string, status types.VideoTaskStatus, msg string, progress uint8) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Model(&types.VideoTask{}).Where("task_id = ?", taskId).Updates(map[string]interface{}{
		"status":     status,
		"status_msg": msg,
		"progress":   progress,
	}).Error
}

// UpdateScene persists the render outcome of one scene.
func UpdateScene(scene *types.SceneTask) error {
	if DB == nil {
		return errDBNotInitialized
	}
	return DB.Model(&types.SceneTask{}).
		Where("task_id = ? AND scene_id = ?", scene.TaskId, scene.SceneId).
		Updates(map[string]interface{}{
			"media_path":     scene.MediaPath,
			"voiceover_path": scene.VoiceoverPath,
			"clip_path":      scene.ClipPath,
			"status":         scene.Status,
			"fail_reason":    scene.FailReason,
		}).Error
}

// MarkStaleTasks fails every task left processing by a previous run.
// Called on startup.
func MarkStaleTasks() (int64, error) {
	if DB == nil {
		return 0, errDBNotInitialized
	}
	result := DB.Model(&types.VideoTask{}).
		Where("status = ?", types.VideoTaskStatusProcessing).
		Updates(map[string]interface{}{
			"status":      types.VideoTaskStatusFailed,
			"fail_reason": "task interrupted by server restart",
			"status_msg":  "interrupted",
		})
	return result.RowsAffected, result.Error
}
