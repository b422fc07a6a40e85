package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	TokenPath    string `toml:"token_path"`
}

// Raster contains configuration for splitting documents into page images.
type Raster struct {
	Backend        string `toml:"backend"`
	DPI            int    `toml:"dpi"`
	ReserveCPUs    int    `toml:"reserve_cpus"`
	StrictPages    bool   `toml:"strict_pages"`
	PdfinfoBinary  string `toml:"pdfinfo_binary"`
	PdftoppmBinary string `toml:"pdftoppm_binary"`
}

// Extraction contains configuration for the text recognition stage.
type Extraction struct {
	Processor             string   `toml:"processor"`
	Concurrency           int      `toml:"concurrency"`
	BackoffCapSeconds     int      `toml:"backoff_cap_seconds"`
	JitterSeconds         float64  `toml:"jitter_seconds"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
	TesseractLanguages    []string `toml:"tesseract_languages"`
}

// Google contains OAuth client settings for the Drive processor.
type Google struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackPort int    `toml:"callback_port"`
}

// Output contains configuration for batch conversion and result files.
type Output struct {
	Formats         []string `toml:"formats"`
	PageSeparator   string   `toml:"page_separator"`
	FileConcurrency int      `toml:"file_concurrency"`
	Extensions      []string `toml:"extensions"`
	SkipExisting    bool     `toml:"skip_existing"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for folio.
//
// Configuration sections by subsystem:
//   - Paths: workspace, output, log and credential locations
//   - Raster: page rendering backend, DPI and worker reserve
//   - Extraction: recognition processor, concurrency and retry backoff
//   - Google: OAuth client used by the Drive processor
//   - Output: formats, separators and batch file concurrency
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Raster     Raster     `toml:"raster"`
	Extraction Extraction `toml:"extraction"`
	Google     Google     `toml:"google"`
	Output     Output     `toml:"output"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv reads .env files next to the config and in the working directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

// EnsureDirectories creates the directories conversion runs write into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", c.Paths.LogDir, err)
		}
	}
	return nil
}

// PdfinfoBinary returns the pdfinfo executable used for page counts.
func (c *Config) PdfinfoBinary() string {
	if bin := strings.TrimSpace(c.Raster.PdfinfoBinary); bin != "" {
		return bin
	}
	return defaultPdfinfoBinary
}

// PdftoppmBinary returns the pdftoppm executable used for page rendering.
func (c *Config) PdftoppmBinary() string {
	if bin := strings.TrimSpace(c.Raster.PdftoppmBinary); bin != "" {
		return bin
	}
	return defaultPdftoppmBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultTokenPath() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "folio", "token.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/folio/token.yaml"
	}
	return filepath.Join(home, ".cache", "folio", "token.yaml")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
