package poppler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"folio/internal/services"
)

var pagesPattern = regexp.MustCompile(`Pages:\s*(\d+)`)

// Executor abstracts command execution for testability. Every line the
// command writes to stdout or stderr is passed to onOutput.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps pdfinfo and pdftoppm. It satisfies raster.MetadataProvider and
// raster.Backend.
type Client struct {
	pdfinfo  string
	pdftoppm string
	exec     Executor
}

// New constructs a Poppler client.
func New(pdfinfoBinary, pdftoppmBinary string, opts ...Option) (*Client, error) {
	pdfinfoBinary = strings.TrimSpace(pdfinfoBinary)
	pdftoppmBinary = strings.TrimSpace(pdftoppmBinary)
	if pdfinfoBinary == "" || pdftoppmBinary == "" {
		return nil, errors.New("pdfinfo and pdftoppm binaries required")
	}
	client := &Client{pdfinfo: pdfinfoBinary, pdftoppm: pdftoppmBinary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PageCount runs pdfinfo and parses its "Pages:" line.
func (c *Client) PageCount(ctx context.Context, documentPath string) (int, error) {
	var out strings.Builder
	err := c.exec.Run(ctx, c.pdfinfo, []string{documentPath}, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	output := scrubInvalidUTF8(out.String())
	if err != nil {
		return 0, services.Wrap(services.ErrMetadataUnavailable, "pdfinfo", "page count", summarize(output), err)
	}
	count, ok := ParsePageCount(output)
	if !ok {
		return 0, services.Wrap(services.ErrMetadataUnavailable, "pdfinfo", "page count", "no Pages line in output: "+summarize(output), nil)
	}
	return count, nil
}

// RenderPage runs pdftoppm for a single 0-based page. pdftoppm names the file
// <outputPrefix>-<n>.png, padding n to the width of the document's page count.
func (c *Client) RenderPage(ctx context.Context, documentPath string, pageIndex, dpi int, outputPrefix string) error {
	page := strconv.Itoa(pageIndex + 1)
	args := []string{"-png", "-r", strconv.Itoa(dpi), "-f", page, "-l", page, documentPath, outputPrefix}
	var stderr []string
	if err := c.exec.Run(ctx, c.pdftoppm, args, func(line string) {
		stderr = append(stderr, line)
	}); err != nil {
		detail := fmt.Sprintf("page %s", page)
		if len(stderr) > 0 {
			detail += ": " + summarize(strings.Join(stderr, "; "))
		}
		return services.Wrap(services.ErrRasterization, "pdftoppm", "render page", detail, err)
	}
	return nil
}

// ParsePageCount extracts the value of the "Pages:" field from pdfinfo output.
func ParsePageCount(output string) (int, bool) {
	match := pagesPattern.FindStringSubmatch(output)
	if match == nil {
		return 0, false
	}
	count, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return count, true
}

// scrubInvalidUTF8 drops bytes that are not valid UTF-8. pdfinfo echoes
// document metadata verbatim, which is often in a legacy encoding.
func scrubInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	t := transform.Chain(
		runes.ReplaceIllFormed(),
		runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError })),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToValidUTF8(s, "")
	}
	return out
}

func summarize(output string) string {
	output = strings.TrimSpace(output)
	const limit = 200
	if len(output) > limit {
		return output[:limit] + "..."
	}
	return output
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				mu.Lock()
				onOutput(scanner.Text())
				mu.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
