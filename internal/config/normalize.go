package config

import (
	"fmt"
	"os"
	"strings"

	"folio/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRaster()
	c.normalizeExtraction()
	c.normalizeGoogle()
	c.normalizeOutput()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = os.TempDir()
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TokenPath) == "" {
		c.Paths.TokenPath = defaultTokenPath()
	}
	if c.Paths.TokenPath, err = expandPath(c.Paths.TokenPath); err != nil {
		return fmt.Errorf("paths.token_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRaster() {
	c.Raster.Backend = strings.ToLower(strings.TrimSpace(c.Raster.Backend))
	if c.Raster.Backend == "" {
		c.Raster.Backend = defaultRasterBackend
	}
	if c.Raster.DPI == 0 {
		c.Raster.DPI = defaultDPI
	}
	if c.Raster.ReserveCPUs < 0 {
		c.Raster.ReserveCPUs = 0
	}
	c.Raster.PdfinfoBinary = strings.TrimSpace(c.Raster.PdfinfoBinary)
	c.Raster.PdftoppmBinary = strings.TrimSpace(c.Raster.PdftoppmBinary)
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Processor = strings.ToLower(strings.TrimSpace(c.Extraction.Processor))
	if c.Extraction.Processor == "" {
		c.Extraction.Processor = defaultProcessor
	}
	if c.Extraction.Concurrency == 0 {
		c.Extraction.Concurrency = defaultExtractionConcurrency
	}
	if c.Extraction.BackoffCapSeconds == 0 {
		c.Extraction.BackoffCapSeconds = defaultBackoffCapSeconds
	}
	if c.Extraction.RequestTimeoutSeconds == 0 {
		c.Extraction.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	langs := language.NormalizeList(c.Extraction.TesseractLanguages)
	if len(langs) == 0 {
		langs = append(langs, defaultTesseractLanguages...)
	}
	c.Extraction.TesseractLanguages = langs
}

func (c *Config) normalizeGoogle() {
	c.Google.ClientID = strings.TrimSpace(c.Google.ClientID)
	if c.Google.ClientID == "" {
		if value, ok := os.LookupEnv("FOLIO_GOOGLE_CLIENT_ID"); ok {
			c.Google.ClientID = strings.TrimSpace(value)
		}
	}
	c.Google.ClientSecret = strings.TrimSpace(c.Google.ClientSecret)
	if c.Google.ClientSecret == "" {
		if value, ok := os.LookupEnv("FOLIO_GOOGLE_CLIENT_SECRET"); ok {
			c.Google.ClientSecret = strings.TrimSpace(value)
		}
	}
	if c.Google.CallbackPort == 0 {
		c.Google.CallbackPort = defaultCallbackPort
	}
}

func (c *Config) normalizeOutput() {
	c.Output.Formats = normalizeList(c.Output.Formats, defaultFormats)
	c.Output.Extensions = normalizeList(c.Output.Extensions, defaultExtensions)
	for i, ext := range c.Output.Extensions {
		c.Output.Extensions[i] = strings.TrimPrefix(ext, ".")
	}
	if c.Output.PageSeparator == "" {
		c.Output.PageSeparator = defaultPageSeparator
	}
	if c.Output.FileConcurrency == 0 {
		c.Output.FileConcurrency = DefaultFileConcurrency()
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeList(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		out = append(out, fallback...)
	}
	return out
}
