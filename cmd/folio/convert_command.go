package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"folio/internal/batch"
	"folio/internal/collect"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/preflight"
	"folio/internal/services"
)

type convertFlags struct {
	dpi             int
	processor       string
	ocrConcurrency  int
	fileConcurrency int
	formats         []string
	pageSeparator   string
	output          string
	extensions      []string
	strictPages     bool
	rasterBackend   string
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert <path>...",
		Short: "Convert PDFs and images to text",
		Long: "Convert renders every PDF page to an image, extracts the text of each page and writes " +
			"one output per requested format. Directories are searched recursively for supported files; " +
			"images are extracted as a single page.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := applyConvertFlags(cmd, *base, flags)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return runConvert(cmd, cfg, logger, args)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.dpi, "dpi", 0, "Render resolution for PDF pages")
	f.StringVarP(&flags.processor, "processor", "p", "", "Recognition processor (google_drive, tesseract)")
	f.IntVar(&flags.ocrConcurrency, "ocr-concurrency", 0, "Pages extracted at once per file")
	f.IntVar(&flags.fileConcurrency, "file-concurrency", 0, "Files converted at once")
	f.StringSliceVarP(&flags.formats, "formats", "f", nil, "Output formats (txt, json, docx)")
	f.StringVar(&flags.pageSeparator, "page-separator", "", "Separator written between pages in txt output (\\n is a newline)")
	f.StringVarP(&flags.output, "output", "o", "", "Output directory (default: current directory)")
	f.StringSliceVarP(&flags.extensions, "extensions", "e", nil, "File extensions collected from directories")
	f.BoolVar(&flags.strictPages, "strict-pages", false, "Fail when any page cannot be rendered")
	f.StringVar(&flags.rasterBackend, "raster-backend", "", "Page renderer (poppler, mupdf)")
	return cmd
}

// applyConvertFlags overlays explicitly set flags on a copy of cfg.
func applyConvertFlags(cmd *cobra.Command, cfg config.Config, flags convertFlags) (*config.Config, error) {
	changed := cmd.Flags().Changed
	if changed("dpi") {
		cfg.Raster.DPI = flags.dpi
	}
	if changed("processor") {
		cfg.Extraction.Processor = strings.ToLower(strings.TrimSpace(flags.processor))
	}
	if changed("ocr-concurrency") {
		cfg.Extraction.Concurrency = flags.ocrConcurrency
	}
	if changed("file-concurrency") {
		cfg.Output.FileConcurrency = flags.fileConcurrency
	}
	if changed("formats") {
		cfg.Output.Formats = lowerAll(flags.formats)
	}
	if changed("page-separator") {
		cfg.Output.PageSeparator = unescapeSeparator(flags.pageSeparator)
	}
	if changed("output") {
		dir, err := config.ExpandPath(flags.output)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "resolve output", flags.output, err)
		}
		cfg.Paths.OutputDir = dir
	}
	if changed("extensions") {
		cfg.Output.Extensions = lowerAll(flags.extensions)
	}
	if changed("strict-pages") {
		cfg.Raster.StrictPages = flags.strictPages
	}
	if changed("raster-backend") {
		cfg.Raster.Backend = strings.ToLower(strings.TrimSpace(flags.rasterBackend))
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "validate flags", "", err)
	}
	// -o may name a directory that does not exist yet.
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "ensure directories", "", err)
	}
	return &cfg, nil
}

// unescapeSeparator turns a literal \n typed on the command line into a newline.
func unescapeSeparator(v string) string {
	return strings.ReplaceAll(v, `\n`, "\n")
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), ".")); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func runConvert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, args []string) error {
	ctx := services.WithRunID(cmd.Context(), uuid.NewString())
	logger = logging.WithContext(ctx, logger)

	if err := checkReadiness(cfg, logger); err != nil {
		return err
	}

	inputs := make([]string, len(args))
	for i, arg := range args {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", arg, err)
		}
		inputs[i] = expanded
	}
	files, err := collect.All(inputs, cfg.Output.Extensions)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return services.Wrap(services.ErrFileNotFound, "convert", "collect inputs",
			fmt.Sprintf("no files with extensions %s found", strings.Join(cfg.Output.Extensions, ", ")), nil)
	}

	errOut := cmd.ErrOrStderr()
	prompt, stopPrompt := browserPrompt(errOut)
	stack, err := newConversionStack(ctx, cfg, logger, prompt)
	stopPrompt()
	if err != nil {
		return err
	}

	processor := batch.NewProcessor(stack.pipeline, stack.extractor, batch.Options{
		OutputDir:     cfg.Paths.OutputDir,
		Formats:       cfg.Output.Formats,
		PageSeparator: cfg.Output.PageSeparator,
		DPI:           cfg.Raster.DPI,
		Concurrency:   cfg.Extraction.Concurrency,
		SkipExisting:  cfg.Output.SkipExisting,
	}, logger)
	runner := batch.NewRunner(processor, cfg.Output.FileConcurrency, logger)

	display := newProgressDisplay(errOut, len(files), logger)
	results := runner.Run(ctx, files, display.hooks())
	display.finish()

	fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))

	if err := ctx.Err(); err != nil {
		return err
	}
	summary := batch.Summarize(results)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed: %w", summary.Failed, len(results), batch.FirstError(results))
	}
	return nil
}

// checkReadiness fails on missing tools or unusable directories. Low disk
// space only warns because small documents still fit.
func checkReadiness(cfg *config.Config, logger *slog.Logger) error {
	var problems []string
	for _, result := range preflight.Failed(preflight.RunAll(cfg)) {
		if result.Name == "Workspace free space" {
			logging.WarnWithContext(logger, "workspace is low on space", "workspace_low_space",
				logging.String("detail", result.Detail),
				logging.String(logging.FieldImpact, "page rendering may fail for large documents"),
			)
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "convert", "preflight", strings.Join(problems, "; "), nil)
	}
	return nil
}

func renderResults(results []batch.Result) string {
	rows := make([][]string, 0, len(results)+1)
	for _, result := range results {
		detail := ""
		switch {
		case result.Err != nil:
			detail = result.Err.Error()
		case len(result.Outputs) > 0:
			detail = strings.Join(baseNames(result.Outputs), ", ")
		}
		duration := ""
		if result.Duration > 0 {
			duration = result.Duration.Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{
			result.Path,
			string(result.Status),
			strconv.Itoa(result.Pages),
			duration,
			detail,
		})
	}
	summary := batch.Summarize(results)
	rows = append(rows, []string{
		"Total",
		fmt.Sprintf("%d converted, %d skipped, %d failed", summary.Converted, summary.Skipped, summary.Failed),
		strconv.Itoa(summary.Pages),
		"",
		"",
	})
	return renderTable(
		[]string{"File", "Status", "Pages", "Time", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	return names
}
