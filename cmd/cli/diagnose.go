package main

import (
	"fmt"
	"io"
	"os"
	"reels-generator/config"
	"reels-generator/internal/appdirs"
	"reels-generator/internal/deps"
	"reels-generator/log"
	"runtime"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
}

func printDiagnose(w io.Writer) {
	fmt.Fprintf(w, "runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "version: %s\n", version)
	fmt.Fprintf(w, "commit: %s\n", commit)
	fmt.Fprintf(w, "date: %s\n", date)

	if wd, err := os.Getwd(); err == nil {
		fmt.Fprintf(w, "working_dir: %s\n", wd)
	} else {
		fmt.Fprintf(w, "working_dir: <error: %v>\n", err)
	}

	if exePath, err := os.Executable(); err == nil {
		fmt.Fprintf(w, "executable: %s\n", exePath)
	} else {
		fmt.Fprintf(w, "executable: <error: %v>\n", err)
	}

	dirs, err := appdirs.Resolve()
	if err != nil {
		fmt.Fprintf(w, "paths: <error: %v>\n", err)
	} else {
		printPath(w, "config", dirs.ConfigFile)
		printPath(w, "output", appdirs.ProjectRootFor(dirs))
		printPath(w, "uploads", appdirs.UploadRootFor(dirs))
		printPath(w, "cache", dirs.CacheDir)
		printPath(w, "music", dirs.MusicDir)
		printPath(w, "db", appdirs.DBPathFor(dirs))
	}
	if logDir, err := log.ResolveLogDir(); err == nil {
		printPath(w, "effective_log_dir", logDir)
	} else {
		fmt.Fprintf(w, "path.effective_log_dir: <error: %v>\n", err)
	}

	if configPath, err := config.ResolveConfigPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			if _, err = config.LoadOrCreateConfig(); err != nil {
				fmt.Fprintf(w, "config: <error: %v>\n", err)
			}
		}
	}
	states := deps.ResolveDependencyInventory(config.Conf.App.FfmpegPath, config.Conf.App.FfprobePath, config.Conf.Render.FontPath)
	fmt.Fprintln(w, deps.FormatDependencyReport(states))
}

func printPath(w io.Writer, name, value string) {
	_, err := os.Stat(value)
	switch {
	case err == nil:
		fmt.Fprintf(w, "path.%s: %s (exists)\n", name, value)
	case os.IsNotExist(err):
		fmt.Fprintf(w, "path.%s: %s (missing)\n", name, value)
	default:
		fmt.Fprintf(w, "path.%s: %s (error=%v)\n", name, value, err)
	}
}
