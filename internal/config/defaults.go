package config

import "runtime"

const (
	defaultConfigPath            = "~/.config/folio/config.toml"
	defaultRasterBackend         = "poppler"
	defaultDPI                   = 150
	defaultReserveCPUs           = 2
	defaultPdfinfoBinary         = "pdfinfo"
	defaultPdftoppmBinary        = "pdftoppm"
	defaultProcessor             = "google_drive"
	defaultExtractionConcurrency = 12
	defaultBackoffCapSeconds     = 60
	defaultJitterSeconds         = 1.0
	defaultRequestTimeoutSeconds = 120
	defaultCallbackPort          = 3027
	defaultPageSeparator         = "\n\nPAGE_SEPARATOR\n\n"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	minFileConcurrency           = 2
)

var (
	// Processors lists the recognition processors folio can drive.
	Processors = []string{"google_drive", "tesseract"}
	// RasterBackends lists the page rendering backends folio can drive.
	RasterBackends = []string{"poppler", "mupdf"}
	// Formats lists the output formats folio can write.
	Formats = []string{"txt", "json", "docx"}

	defaultExtensions         = []string{"pdf", "jpg", "jpeg", "png"}
	defaultFormats            = []string{"txt"}
	defaultTesseractLanguages = []string{"ara", "eng"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TokenPath: defaultTokenPath(),
		},
		Raster: Raster{
			Backend:        defaultRasterBackend,
			DPI:            defaultDPI,
			ReserveCPUs:    defaultReserveCPUs,
			PdfinfoBinary:  defaultPdfinfoBinary,
			PdftoppmBinary: defaultPdftoppmBinary,
		},
		Extraction: Extraction{
			Processor:             defaultProcessor,
			Concurrency:           defaultExtractionConcurrency,
			BackoffCapSeconds:     defaultBackoffCapSeconds,
			JitterSeconds:         defaultJitterSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			TesseractLanguages:    append([]string(nil), defaultTesseractLanguages...),
		},
		Google: Google{
			CallbackPort: defaultCallbackPort,
		},
		Output: Output{
			Formats:         append([]string(nil), defaultFormats...),
			PageSeparator:   defaultPageSeparator,
			FileConcurrency: DefaultFileConcurrency(),
			Extensions:      append([]string(nil), defaultExtensions...),
			SkipExisting:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultFileConcurrency returns the CPU count minus two, never below two.
func DefaultFileConcurrency() int {
	return max(runtime.NumCPU()-2, minFileConcurrency)
}
