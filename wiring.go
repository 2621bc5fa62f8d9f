package main

import (
	"errors"
	"log/slog"

	"topo-scan/pkg/config"
	"topo-scan/pkg/services/attribution"
	"topo-scan/pkg/services/compositor"
	"topo-scan/pkg/services/ocr"
	"topo-scan/pkg/services/topography"
)

// newDetector builds the configured text detector. The returned close
// function is never nil.
func newDetector(cfg *config.Config) (ocr.Detector, func() error, error) {
	switch cfg.Detector {
	case config.DetectorTesseract:
		d, err := ocr.NewTesseractDetector(cfg.TesseractLang)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		if cfg.AzureEndpoint == "" || cfg.AzureKey == "" {
			return nil, nil, errors.New("azure detector requires TOPO_AZURE_ENDPOINT and TOPO_AZURE_KEY")
		}
		return ocr.NewAzureDetector(cfg.AzureEndpoint, cfg.AzureKey), func() error { return nil }, nil
	}
}

// newService builds the pipeline from configuration.
func newService(cfg *config.Config, detector ocr.Detector, logger *slog.Logger) (*topography.Service, error) {
	return topography.New(topography.Config{
		Detector: detector,
		Attribution: attribution.Config{
			LeftRatio:     cfg.LeftRatio,
			ExtendedRatio: cfg.ExtendedRatio,
			FallbackWidth: cfg.FallbackWidth,
		},
		Compositor: compositor.Options{
			Gap:     cfg.CompositeGap,
			Enhance: cfg.Enhance,
			Logger:  logger,
		},
		Enhance: cfg.Enhance,
		Batch: ocr.BatchOptions{
			Size:        cfg.BatchSize,
			Concurrency: cfg.BatchConcurrency,
		},
		Retries:    cfg.DetectRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
}
