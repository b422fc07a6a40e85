package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"folio/internal/config"
	"folio/internal/language"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
			} else if target, err = config.ExpandPath(target); err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set google.client_id and google.client_secret (or export FOLIO_GOOGLE_CLIENT_ID and FOLIO_GOOGLE_CLIENT_SECRET) to use the google_drive processor.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if cfg.Extraction.Processor == "google_drive" {
				if err := cfg.RequireGoogleCredentials(); err != nil {
					fmt.Fprintf(out, "Warning: %v\n", err)
				}
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := configRows(cfg)
			fmt.Fprintf(cmd.OutOrStdout(), "Config path: %s\n", ctx.configPath)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}
}

func configRows(cfg *config.Config) [][]string {
	secret := "(unset)"
	if cfg.Google.ClientSecret != "" {
		secret = "(set)"
	}
	outputDir := cfg.Paths.OutputDir
	if outputDir == "" {
		outputDir = "(current directory)"
	}
	return [][]string{
		{"paths.workspace_dir", cfg.Paths.WorkspaceDir},
		{"paths.output_dir", outputDir},
		{"paths.log_dir", cfg.Paths.LogDir},
		{"paths.token_path", cfg.Paths.TokenPath},
		{"raster.backend", cfg.Raster.Backend},
		{"raster.dpi", strconv.Itoa(cfg.Raster.DPI)},
		{"raster.reserve_cpus", strconv.Itoa(cfg.Raster.ReserveCPUs)},
		{"raster.strict_pages", yesNo(cfg.Raster.StrictPages)},
		{"extraction.processor", cfg.Extraction.Processor},
		{"extraction.concurrency", strconv.Itoa(cfg.Extraction.Concurrency)},
		{"extraction.backoff_cap_seconds", strconv.Itoa(cfg.Extraction.BackoffCapSeconds)},
		{"extraction.jitter_seconds", strconv.FormatFloat(cfg.Extraction.JitterSeconds, 'f', -1, 64)},
		{"extraction.tesseract_languages", describeLanguages(cfg.Extraction.TesseractLanguages)},
		{"google.client_id", cfg.Google.ClientID},
		{"google.client_secret", secret},
		{"google.callback_port", strconv.Itoa(cfg.Google.CallbackPort)},
		{"output.formats", strings.Join(cfg.Output.Formats, ", ")},
		{"output.page_separator", strconv.Quote(cfg.Output.PageSeparator)},
		{"output.file_concurrency", strconv.Itoa(cfg.Output.FileConcurrency)},
		{"output.extensions", strings.Join(cfg.Output.Extensions, ", ")},
		{"output.skip_existing", yesNo(cfg.Output.SkipExisting)},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
	}
}

func describeLanguages(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = language.DisplayName(code)
	}
	return fmt.Sprintf("%s (%s)", language.Joined(codes), strings.Join(names, ", "))
}
