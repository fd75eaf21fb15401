package service

import (
	"fmt"
	"os"
	"path/filepath"
	"reels-generator/internal/appdirs"
	apperrors "reels-generator/pkg/errors"
	"strings"
)

var appDirsResolver = appdirs.Resolve

func resolveProjectRoot() (string, error) {
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return appdirs.ProjectRootFor(dirs), nil
}

// allocateProjectDir creates the next free project folder for name.
func allocateProjectDir(name string) (string, error) {
	root, err := resolveProjectRoot()
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	dir, err := appdirs.NextProjectDir(root, name)
	if err != nil {
		return "", err
	}
	return dir, os.MkdirAll(dir, 0o755)
}

// resolveDownloadPath maps a local artifact under the project root to the
// path served by the file download endpoint.
func resolveDownloadPath(localPath string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", nil
	}
	projectRoot, err := resolveProjectRoot()
	if err != nil {
		return "", err
	}

	cleanedLocalPath := filepath.Clean(localPath)
	relPath, err := filepath.Rel(filepath.Clean(projectRoot), cleanedLocalPath)
	if err != nil {
		return "", err
	}
	if relPath == "." || relPath == "" {
		return "", fmt.Errorf("project artifact path %q is not a file path", localPath)
	}
	if !withinRoot(projectRoot, cleanedLocalPath) {
		return "", fmt.Errorf("project artifact path %q is outside project root %q", localPath, projectRoot)
	}
	return filepath.ToSlash(filepath.Join(appdirs.ProjectRootName, relPath)), nil
}

// artifactRoots maps the prefixes of download paths to the directories they
// serve. Without resolvable app dirs both fall back to the working directory.
func artifactRoots() map[string]string {
	dirs, err := appDirsResolver()
	if err != nil {
		return map[string]string{
			appdirs.ProjectRootName: appdirs.ProjectRootName,
			appdirs.UploadRootName:  appdirs.UploadRootName,
		}
	}
	return map[string]string{
		appdirs.ProjectRootName: appdirs.ProjectRootFor(dirs),
		appdirs.UploadRootName:  appdirs.UploadRootFor(dirs),
	}
}

// UploadRoot is where uploaded media and music files are stored.
func UploadRoot() string {
	return artifactRoots()[appdirs.UploadRootName]
}

// LocalArtifactPath is the inverse of the download path handed out with
// task results: "projects/<name>/..." or "uploads/..." back to the file on
// disk. Any other prefix and any ".." segment are rejected.
func LocalArtifactPath(downloadPath string) (string, error) {
	downloadPath = strings.ReplaceAll(strings.TrimSpace(downloadPath), `\`, "/")
	downloadPath = strings.Trim(downloadPath, "/")
	prefix, rel, _ := strings.Cut(downloadPath, "/")

	root, ok := artifactRoots()[prefix]
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("download path %q is not under %s/ or %s/", downloadPath, appdirs.ProjectRootName, appdirs.UploadRootName))
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("download path %q leaves its root", downloadPath))
		}
	}
	local := filepath.Join(root, filepath.FromSlash(rel))
	if !withinRoot(root, local) {
		return "", apperrors.New(apperrors.CodeInvalidParams, fmt.Sprintf("download path %q leaves its root", downloadPath))
	}
	return local, nil
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func resolveMusicDir(configured string) (string, error) {
	if strings.TrimSpace(configured) != "" {
		return configured, nil
	}
	dirs, err := appDirsResolver()
	if err != nil {
		return "", err
	}
	return dirs.MusicDir, nil
}
