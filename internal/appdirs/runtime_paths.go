package appdirs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	ProjectRootName = "projects"
	UploadRootName  = "uploads"
	dbFileName      = "reels.db"

	sceneAssetDirName = "generated_images"
	sceneClipDirName  = "generated_video"
	voiceoverFileName = "voiceover.mp3"
	sceneClipFileName = "video.mp4"
	finalVideoName    = "final_video.mp4"
)

func ProjectRootFor(paths Paths) string {
	return filepath.Join(normalizeOutputDir(paths.OutputDir), ProjectRootName)
}

func ProjectDirFor(paths Paths, project string) string {
	return filepath.Join(ProjectRootFor(paths), project)
}

func UploadRootFor(paths Paths) string {
	return filepath.Join(normalizeOutputDir(paths.OutputDir), UploadRootName)
}

func DBPathFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), dbFileName)
}

// SceneAssetDir holds the inputs of one scene: voiceover and media.
func SceneAssetDir(projectDir, videoID, sceneID string) string {
	return filepath.Join(projectDir, sceneAssetDirName, SanitizeName(videoID), SanitizeName(sceneID))
}

func VoiceoverPath(projectDir, videoID, sceneID string) string {
	return filepath.Join(SceneAssetDir(projectDir, videoID, sceneID), voiceoverFileName)
}

// SceneClipPath is the deterministic render target of one scene.
func SceneClipPath(projectDir, videoID, sceneID string) string {
	return filepath.Join(projectDir, sceneClipDirName, SanitizeName(videoID), SanitizeName(sceneID), sceneClipFileName)
}

func FinalVideoPath(projectDir, videoID string) string {
	return filepath.Join(projectDir, sceneClipDirName, SanitizeName(videoID), finalVideoName)
}

// SuffixedPath inserts suffix between the base name and extension.
func SuffixedPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// NextProjectDir returns the first free directory name of the form
// base, base_1, base_2 ... under root.
func NextProjectDir(root, base string) (string, error) {
	base = SanitizeName(base)
	if base == "" {
		base = "project"
	}
	candidate := filepath.Join(root, base)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = filepath.Join(root, fmt.Sprintf("%s_%d", base, i))
	}
}

var symbolPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// SanitizeName strips symbols so a user-facing name can be used as a
// single path element.
func SanitizeName(name string) string {
	cleaned := symbolPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(cleaned)
}

func normalizeOutputDir(outputDir string) string {
	cleaned := strings.TrimSpace(outputDir)
	if cleaned == "" {
		return "."
	}
	return filepath.Clean(cleaned)
}

func normalizeCacheDir(cacheDir string) string {
	cleaned := strings.TrimSpace(cacheDir)
	if cleaned == "" {
		return "cache"
	}
	return filepath.Clean(cleaned)
}
