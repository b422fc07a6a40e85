package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRaster(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateRaster() error {
	if !slices.Contains(RasterBackends, c.Raster.Backend) {
		return fmt.Errorf("raster.backend must be one of %v, got %q", RasterBackends, c.Raster.Backend)
	}
	if c.Raster.DPI <= 0 {
		return errors.New("raster.dpi must be positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if !slices.Contains(Processors, c.Extraction.Processor) {
		return fmt.Errorf("extraction.processor must be one of %v, got %q", Processors, c.Extraction.Processor)
	}
	if err := ensurePositiveMap(map[string]int{
		"extraction.concurrency":             c.Extraction.Concurrency,
		"extraction.backoff_cap_seconds":     c.Extraction.BackoffCapSeconds,
		"extraction.request_timeout_seconds": c.Extraction.RequestTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Extraction.JitterSeconds < 0 {
		return errors.New("extraction.jitter_seconds must be >= 0")
	}
	return nil
}

// validateGoogle checks the OAuth client only for range errors; missing
// credentials are reported when the Drive processor is actually used. Port 0
// lets the OS pick the callback port.
func (c *Config) validateGoogle() error {
	if c.Google.CallbackPort < 0 || c.Google.CallbackPort > 65535 {
		return errors.New("google.callback_port must be between 0 and 65535")
	}
	return nil
}

func (c *Config) validateOutput() error {
	for _, format := range c.Output.Formats {
		if !slices.Contains(Formats, format) {
			return fmt.Errorf("output.formats: unsupported format %q (supported: %v)", format, Formats)
		}
	}
	if c.Output.FileConcurrency <= 0 {
		return errors.New("output.file_concurrency must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

// RequireGoogleCredentials reports a configuration error when the Drive
// OAuth client is incomplete.
func (c *Config) RequireGoogleCredentials() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("google.client_id and google.client_secret are required for the google_drive processor. Set FOLIO_GOOGLE_CLIENT_ID and FOLIO_GOOGLE_CLIENT_SECRET or edit %s (create with 'folio config init')", defaultPath)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
