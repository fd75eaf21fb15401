package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"reels-generator/internal/appcore"
	"reels-generator/internal/dto"
	"reels-generator/internal/service"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var errConfig = errors.New("config could not be loaded")

type renderOptions struct {
	project string
	noMusic bool
	upload  bool
}

func newRenderCmd() *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <project.json>",
		Short: "Render one video described by a project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadProject(args[0])
			if err != nil {
				return err
			}
			if opts.project != "" {
				req.Project = opts.project
			}
			if opts.noMusic {
				req.Music.Enabled = false
			}
			if cmd.Flags().Changed("upload") {
				req.Upload = opts.upload
			}

			if err = bootstrap(); err != nil {
				return err
			}
			defer shutdown()

			svc := service.NewService()
			defer svc.Close()

			task, err := svc.CreateVideoTask(req)
			if err != nil {
				return err
			}
			result, err := svc.RunVideoTask(cmd.Context(), task.TaskId)
			printResult(cmd.OutOrStdout(), result)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.project, "project", "", "project directory name under the output root")
	cmd.Flags().BoolVar(&opts.noMusic, "no-music", false, "skip background music")
	cmd.Flags().BoolVar(&opts.upload, "upload", false, "upload the final video to object storage")
	return cmd
}

func loadProject(path string) (dto.StartVideoTaskReq, error) {
	var req dto.StartVideoTaskReq
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read project file: %w", err)
	}
	if err = json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse project file %s: %w", path, err)
	}
	return req, nil
}

func printResult(w io.Writer, result appcore.JobResult) {
	fmt.Fprintf(w, "task: %s\nstage: %s\n", result.JobID, result.Stage)
	if result.OutputPath != "" {
		fmt.Fprintf(w, "output: %s\n", result.OutputPath)
	}
	keys := make([]string, 0, len(result.Artifacts))
	for k := range result.Artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "artifact.%s: %s\n", k, result.Artifacts[k])
	}
	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		fmt.Fprintf(w, "elapsed: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	}
	if result.Err != nil {
		fmt.Fprintf(w, "error: %v\n", result.Err)
	}
}
