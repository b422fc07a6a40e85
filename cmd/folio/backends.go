package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"folio/internal/auth"
	"folio/internal/config"
	"folio/internal/extraction"
	"folio/internal/pipeline"
	"folio/internal/raster"
	"folio/internal/services"
	"folio/internal/services/gdrive"
	"folio/internal/services/mupdf"
	"folio/internal/services/poppler"
	"folio/internal/services/tesseract"
)

// rasterBackend is what both rendering backends provide.
type rasterBackend interface {
	raster.MetadataProvider
	raster.Backend
}

func newRasterBackend(cfg *config.Config) (rasterBackend, error) {
	switch cfg.Raster.Backend {
	case "mupdf":
		return mupdf.New(), nil
	case "poppler":
		client, err := poppler.New(cfg.PdfinfoBinary(), cfg.PdftoppmBinary())
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "raster", "init poppler", "", err)
		}
		return client, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "raster", "select backend",
			fmt.Sprintf("unknown backend %q", cfg.Raster.Backend), nil)
	}
}

func newAuthorizer(cfg *config.Config, logger *slog.Logger, opts ...auth.Option) (*auth.Authorizer, error) {
	if err := cfg.RequireGoogleCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "load client", "", err)
	}
	opts = append([]auth.Option{auth.WithLogger(logger)}, opts...)
	return auth.NewAuthorizer(
		cfg.Google.ClientID,
		cfg.Google.ClientSecret,
		cfg.Google.CallbackPort,
		auth.NewTokenStore(cfg.Paths.TokenPath),
		opts...,
	), nil
}

func newExtractionBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, authOpts ...auth.Option) (extraction.Backend, error) {
	switch cfg.Extraction.Processor {
	case "tesseract":
		return tesseract.New(cfg.Extraction.TesseractLanguages), nil
	case "google_drive":
		authorizer, err := newAuthorizer(cfg, logger, authOpts...)
		if err != nil {
			return nil, err
		}
		tokens, err := authorizer.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return gdrive.New(ctx, tokens,
			gdrive.WithRequestTimeout(time.Duration(cfg.Extraction.RequestTimeoutSeconds)*time.Second))
	default:
		return nil, services.Wrap(services.ErrConfiguration, "extraction", "select processor",
			fmt.Sprintf("unknown processor %q", cfg.Extraction.Processor), nil)
	}
}

// conversionStack is everything a convert run drives.
type conversionStack struct {
	pipeline  *pipeline.Pipeline
	extractor *extraction.Client
}

func newConversionStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, authOpts ...auth.Option) (*conversionStack, error) {
	renderer, err := newRasterBackend(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := newExtractionBackend(ctx, cfg, logger, authOpts...)
	if err != nil {
		return nil, err
	}

	rasterizer := raster.New(renderer, renderer,
		raster.WithWorkspaceDir(cfg.Paths.WorkspaceDir),
		raster.WithReserveCPUs(cfg.Raster.ReserveCPUs),
		raster.WithStrictPages(cfg.Raster.StrictPages),
		raster.WithLogger(logger),
	)
	client := extraction.NewClient(backend,
		extraction.WithLogger(logger),
		extraction.WithBackoff(
			time.Duration(cfg.Extraction.BackoffCapSeconds)*time.Second,
			time.Duration(cfg.Extraction.JitterSeconds*float64(time.Second)),
		),
	)
	return &conversionStack{
		pipeline:  pipeline.New(rasterizer, client, logger),
		extractor: client,
	}, nil
}
