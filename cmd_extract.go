package main

import (
	"encoding/json"
	"fmt"
	"os"

	"topo-scan/pkg/config"
	"topo-scan/pkg/models"

	"github.com/spf13/cobra"
)

var (
	extractFields  string
	extractRegions string
)

var extractCmd = &cobra.Command{
	Use:   "extract <image>",
	Short: "Extract measurements from a local image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := cfg.Logger()

		image, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		detector, closeDetector, err := newDetector(cfg)
		if err != nil {
			return err
		}
		defer closeDetector()

		svc, err := newService(cfg, detector, logger)
		if err != nil {
			return err
		}

		var out any
		if extractRegions != "" {
			regions, err := parseRegions(extractRegions)
			if err != nil {
				return err
			}
			out, err = svc.ProcessRegions(cmd.Context(), image, regions, extractFields)
			if err != nil {
				return err
			}
		} else {
			out, err = svc.ProcessFullPage(cmd.Context(), image, extractFields)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFields, "fields", "f", "", "comma-separated field groups (default: all)")
	extractCmd.Flags().StringVarP(&extractRegions, "regions", "r", "", "JSON array of normalized regions, or @file")
}

// parseRegions decodes a JSON region list. A leading "@" reads it from a file.
func parseRegions(s string) ([]models.NormalizedRegion, error) {
	data := []byte(s)
	if len(s) > 0 && s[0] == '@' {
		b, err := os.ReadFile(s[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read regions file: %w", err)
		}
		data = b
	}

	var regions []models.NormalizedRegion
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("failed to parse regions: %w", err)
	}
	return regions, nil
}
