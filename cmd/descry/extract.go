package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lumireader/descry/internal/config"
	"github.com/lumireader/descry/internal/engine"
	"github.com/lumireader/descry/internal/enrich"
)

var (
	extractMode      string
	extractProcessor string
	extractChapterID string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract description candidates from a chapter text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read chapter file: %w", err)
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		logger := slog.Default()
		ec := engine.NewContext(cfg, engine.WithLogger(logger))

		enricher, err := enrich.FromConfig(cfg, logger)
		if err != nil {
			return err
		}
		if enricher != nil {
			ec.Enricher = enricher
		}

		chapterID := extractChapterID
		if chapterID == "" {
			chapterID = filepath.Base(args[0])
		}

		var opts []engine.ExtractOption
		if extractMode != "" {
			mode, err := engine.ParseMode(extractMode)
			if err != nil {
				return err
			}
			opts = append(opts, engine.WithMode(mode))
		}
		if extractProcessor != "" {
			opts = append(opts, engine.WithProcessor(extractProcessor))
		}

		result, err := engine.New(ec).Extract(cmd.Context(), string(data), chapterID, opts...)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractMode, "mode", "m", "", "processing mode: single, parallel, sequential, ensemble, adaptive")
	extractCmd.Flags().StringVarP(&extractProcessor, "processor", "p", "", "run a single named extractor")
	extractCmd.Flags().StringVar(&extractChapterID, "chapter-id", "", "chapter identifier (default: file name)")
}
