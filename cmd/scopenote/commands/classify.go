package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/api"
	"github.com/scopenote/scopenote/internal/realtime"
	"github.com/scopenote/scopenote/internal/session"
	"github.com/scopenote/scopenote/internal/termview"
)

var (
	classifyHint     string
	classifyKeepOpen bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify endoscopy images in one shot",
	Long: `Open a session, classify the given image files in order, print
the results, and close the session. Items that fail are reported
individually; the rest of the batch still completes.

Examples:
  scopenote classify antrum.png fundus.png
  scopenote classify stills/*.png --hint "retroflexion series" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

		client := api.NewClient(api.Config{BaseURL: cfg.BackendURL})
		ctrl := session.New(session.Config{
			Backend: client,
			Dial: func(ctx context.Context, sessionID string) (session.Realtime, error) {
				return realtime.Dial(ctx, cfg.RealtimeEndpoint(sessionID), log)
			},
			Feed:           termview.NewFeed(os.Stderr),
			RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		}, log)

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			ctrl.Enqueue(filepath.Base(path), data)
		}
		if classifyHint != "" {
			ctrl.SetDraft(classifyHint)
		}

		ctx := cmd.Context()
		if err := ctrl.ClassifyQueued(ctx); err != nil {
			return err
		}
		if !classifyKeepOpen {
			noGenerate := false
			if err := ctrl.Close(ctx, &noGenerate); err != nil {
				log.Warn("close session", "error", err)
			}
		}

		return printClassifications(ctrl.Items())
	},
}

func printClassifications(items []session.UploadItem) error {
	if outputJSON {
		type result struct {
			File        string `json:"file"`
			Status      string `json:"status"`
			Label       string `json:"label,omitempty"`
			Reasoning   string `json:"reasoning,omitempty"`
			Description string `json:"description,omitempty"`
			Error       string `json:"error,omitempty"`
		}
		results := make([]result, 0, len(items))
		for _, it := range items {
			results = append(results, result{
				File:        it.Filename,
				Status:      string(it.Status),
				Label:       it.Label,
				Reasoning:   it.Reasoning,
				Description: it.ImageDescription,
				Error:       it.Err,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	failed := 0
	for _, it := range items {
		switch it.Status {
		case session.StatusClassified:
			fmt.Printf("%s: %s\n", it.Filename, it.Label)
			if it.Reasoning != "" {
				fmt.Printf("  %s\n", it.Reasoning)
			}
		case session.StatusError:
			failed++
			fmt.Printf("%s: failed: %s\n", it.Filename, it.Err)
		default:
			fmt.Printf("%s: %s\n", it.Filename, string(it.Status))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(items))
	}
	return nil
}

func init() {
	classifyCmd.Flags().StringVar(&classifyHint, "hint", "", "free-text context sent with each classification")
	classifyCmd.Flags().BoolVar(&classifyKeepOpen, "keep-open", false, "leave the session open after classifying")
}
