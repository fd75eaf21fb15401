package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/dto"
	"reels-generator/internal/response"
	"reels-generator/internal/service"
	"reels-generator/log"
	apperrors "reels-generator/pkg/errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadFile stores media or music files under the upload root. The
// returned absolute paths are used as media_ref with media_origin "file".
func (h Handler) UploadFile(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeInvalidParams, "未能获取文件 No multipart form", err))
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		response.ErrorResponse(c, apperrors.New(apperrors.CodeInvalidParams, "未上传任何文件 No file uploaded"))
		return
	}

	uploadRoot := service.UploadRoot()
	if err = os.MkdirAll(uploadRoot, 0o755); err != nil {
		response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeFileWriteError, "创建上传目录失败 Failed to create upload dir", err))
		return
	}

	saved := make([]string, 0, len(files))
	for _, file := range files {
		name := appdirs.SanitizeName(strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename)))
		if name == "" {
			name = "file"
		}
		name = fmt.Sprintf("%s_%s%s", name, uuid.NewString()[:8], strings.ToLower(filepath.Ext(file.Filename)))
		savePath := filepath.Join(uploadRoot, name)
		if err := c.SaveUploadedFile(file, savePath); err != nil {
			log.GetLogger().Error("UploadFile save err", zap.String("file", file.Filename), zap.Error(err))
			response.ErrorResponse(c, apperrors.Wrap(apperrors.CodeFileWriteError, "文件保存失败 Failed to save "+file.Filename, err))
			return
		}
		if abs, absErr := filepath.Abs(savePath); absErr == nil {
			savePath = abs
		}
		saved = append(saved, savePath)
	}

	response.Success(c, dto.UploadFileResData{FilePath: saved})
}

// DownloadFile serves artifacts under the project and upload roots.
func (h Handler) DownloadFile(c *gin.Context) {
	requestedFile := c.Param("filepath")
	if strings.Trim(requestedFile, "/") == "" {
		c.JSON(http.StatusBadRequest, response.FromError(apperrors.New(apperrors.CodeInvalidParams, "文件路径为空 Empty file path")))
		return
	}

	localFilePath, err := service.LocalArtifactPath(requestedFile)
	if err != nil {
		log.GetLogger().Warn("DownloadFile rejected path", zap.String("path", requestedFile), zap.Error(err))
		c.JSON(http.StatusForbidden, response.FromError(apperrors.Wrap(apperrors.CodeInvalidParams, "非法路径 Invalid path", err)))
		return
	}
	info, err := os.Stat(localFilePath)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, response.FromError(apperrors.ErrNotFound))
		return
	}
	c.FileAttachment(localFilePath, filepath.Base(localFilePath))
}
