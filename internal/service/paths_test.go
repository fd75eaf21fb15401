package service

import (
	"path/filepath"
	"reels-generator/internal/appdirs"
	"strings"
	"testing"
)

func useTestDirs(t *testing.T) appdirs.Paths {
	t.Helper()
	tempDir := t.TempDir()
	originalResolver := appDirsResolver
	t.Cleanup(func() {
		appDirsResolver = originalResolver
	})

	paths := appdirs.Paths{
		OutputDir: filepath.Join(tempDir, "output-root"),
		CacheDir:  filepath.Join(tempDir, "cache-root"),
		MusicDir:  filepath.Join(tempDir, "music"),
	}
	appDirsResolver = func() (appdirs.Paths, error) {
		return paths, nil
	}
	return paths
}

func TestAllocateProjectDirIncrements(t *testing.T) {
	paths := useTestDirs(t)

	first, err := allocateProjectDir("manual_project")
	if err != nil {
		t.Fatalf("allocateProjectDir() returned error: %v", err)
	}
	second, err := allocateProjectDir("manual_project")
	if err != nil {
		t.Fatalf("allocateProjectDir() returned error: %v", err)
	}

	root := filepath.Join(paths.OutputDir, "projects")
	if first != filepath.Join(root, "manual_project") {
		t.Fatalf("first project dir = %q", first)
	}
	if second != filepath.Join(root, "manual_project_1") {
		t.Fatalf("second project dir = %q", second)
	}
}

func TestResolveDownloadPath(t *testing.T) {
	paths := useTestDirs(t)

	localArtifact := filepath.Join(paths.OutputDir, "projects", "p", "generated_video", "v1", "final_video.mp4")
	got, err := resolveDownloadPath(localArtifact)
	if err != nil {
		t.Fatalf("resolveDownloadPath() returned error: %v", err)
	}

	want := "projects/p/generated_video/v1/final_video.mp4"
	if got != want {
		t.Fatalf("resolveDownloadPath() = %q, want %q", got, want)
	}

	if got, err := resolveDownloadPath(""); err != nil || got != "" {
		t.Fatalf("resolveDownloadPath(\"\") = %q, %v", got, err)
	}
}

func TestResolveDownloadPathRejectsOutsideProjectRoot(t *testing.T) {
	paths := useTestDirs(t)

	_, err := resolveDownloadPath(filepath.Join(paths.OutputDir, "elsewhere", "final_video.mp4"))
	if err == nil {
		t.Fatal("resolveDownloadPath() returned nil error for path outside project root")
	}
	if !strings.Contains(err.Error(), "outside project root") {
		t.Fatalf("resolveDownloadPath() error = %q, want containing %q", err.Error(), "outside project root")
	}
}

func TestResolveMusicDir(t *testing.T) {
	paths := useTestDirs(t)

	if got, _ := resolveMusicDir("custom"); got != "custom" {
		t.Fatalf("resolveMusicDir(custom) = %q", got)
	}
	if got, _ := resolveMusicDir(""); got != paths.MusicDir {
		t.Fatalf("resolveMusicDir(\"\") = %q, want %q", got, paths.MusicDir)
	}
}

func TestLocalArtifactPath(t *testing.T) {
	paths := useTestDirs(t)

	testCases := []struct {
		name     string
		download string
		want     string
	}{
		{name: "project artifact", download: "projects/p/generated_video/v1/final_video.mp4",
			want: filepath.Join(paths.OutputDir, "projects", "p", "generated_video", "v1", "final_video.mp4")},
		{name: "leading slash", download: "/uploads/song.mp3", want: filepath.Join(paths.OutputDir, "uploads", "song.mp3")},
		{name: "root only", download: "projects", want: filepath.Join(paths.OutputDir, "projects")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalArtifactPath(tc.download)
			if err != nil {
				t.Fatalf("LocalArtifactPath(%q) returned error: %v", tc.download, err)
			}
			if got != tc.want {
				t.Fatalf("LocalArtifactPath(%q) = %q, want %q", tc.download, got, tc.want)
			}
		})
	}

	// round trip with the path handed out in task results
	local := filepath.Join(paths.OutputDir, "projects", "p", "final_video.mp4")
	download, err := resolveDownloadPath(local)
	if err != nil {
		t.Fatalf("resolveDownloadPath() returned error: %v", err)
	}
	if got, err := LocalArtifactPath(download); err != nil || got != local {
		t.Fatalf("LocalArtifactPath(%q) = %q, %v", download, got, err)
	}
}

func TestLocalArtifactPathRejects(t *testing.T) {
	useTestDirs(t)

	for _, download := range []string{
		"projects/../../etc/passwd",
		`uploads\..\..\secret`,
		"cache/reels.db",
		"",
	} {
		if got, err := LocalArtifactPath(download); err == nil {
			t.Fatalf("LocalArtifactPath(%q) = %q, want error", download, got)
		}
	}
}

func TestUploadRoot(t *testing.T) {
	paths := useTestDirs(t)

	if got := UploadRoot(); got != filepath.Join(paths.OutputDir, "uploads") {
		t.Fatalf("UploadRoot() = %q", got)
	}
}
