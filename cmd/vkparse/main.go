// Command vkparse конвертирует HTML-экспорты переписки VkOpt в текст, JSON или Excel.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vkopt-message-parser/internal/adapters/exporter"
	"vkopt-message-parser/internal/adapters/parser"
	"vkopt-message-parser/internal/adapters/source"
	"vkopt-message-parser/internal/core/services"
	"vkopt-message-parser/internal/domain"
	vklog "vkopt-message-parser/internal/log"
	"vkopt-message-parser/internal/pkg/term"
	"vkopt-message-parser/internal/ports"
)

var version = "dev"

// errOutputExists возвращается, если файл результата существует, а перезапись не подтверждена.
var errOutputExists = errors.New("output file already exists, use --force to overwrite")

type options struct {
	output           string
	onlyIncludeNames []string
	excludeNames     []string
	sinceDate        string
	delimiter        string
	maxDepth         int
	format           string
	poolSize         int
	timeout          time.Duration
	maxFileSize      string
	force            bool
	quiet            bool
	logLevel         string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "vkparse -o OUTPUT [flags] -- INPUT...",
		Short: "Convert VkOpt HTML chat exports",
		Long: `vkparse reads chat exports saved by the VkOpt browser extension and writes
the message bodies as text (one block per input, in input order), the assembled
messages as JSON records, or an Excel workbook.

Mentions like [id1|Name] are replaced with the name, emoji images with their
alt text. Forwarded messages keep their nesting level in records.`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", `Output file ("-" writes text to stdout)`)
	f.StringSliceVar(&opts.onlyIncludeNames, "only-include-names", nil, "Keep only messages from these short names (comma-separated or repeated)")
	f.StringSliceVar(&opts.excludeNames, "exclude-names", nil, "Drop messages from these short names (comma-separated or repeated)")
	f.StringVar(&opts.sinceDate, "since-date", "", `Drop messages older than this date, e.g. "2019.01.01 13:00:00"`)
	f.StringVar(&opts.delimiter, "text-delimiter", "\n", "String appended after every message body")
	f.IntVar(&opts.maxDepth, "max-depth", -1, "Maximum depth of forwarded messages to keep (-1 for no limit)")
	f.StringVar(&opts.format, "format", string(exporter.FormatText), "Output format: text, records or xlsx")
	f.IntVar(&opts.poolSize, "pool-size", 4, "Number of files converted concurrently")
	f.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Timeout for the whole conversion")
	f.StringVar(&opts.maxFileSize, "max-file-size", "256 MB", "Refuse input files larger than this")
	f.BoolVarP(&opts.force, "force", "f", false, "Overwrite the output file without asking")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the summary")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	_ = cmd.MarkFlagRequired("output")
	cmd.MarkFlagsMutuallyExclusive("only-include-names", "exclude-names")

	return cmd
}

func run(cmd *cobra.Command, opts *options, inputs []string) error {
	logger, err := vklog.New(cmd.ErrOrStderr(), opts.logLevel, "text")
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}

	format, err := exporter.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.output == "-" && format != exporter.FormatText {
		return fmt.Errorf("format %s cannot be written to stdout", format)
	}

	maxSize, err := humanize.ParseBytes(opts.maxFileSize)
	if err != nil {
		return fmt.Errorf("invalid --max-file-size: %w", err)
	}

	if err := confirmOverwrite(cmd, opts); err != nil {
		return err
	}

	parseOpts := domain.ParseOptions{
		FilterOptions: domain.FilterOptions{
			OnlyIncludeNames: opts.onlyIncludeNames,
			ExcludeNames:     opts.excludeNames,
			Since:            opts.sinceDate,
		},
		Delimiter: domain.TextDelimiter(opts.delimiter),
	}
	if opts.maxDepth >= 0 {
		depth := opts.maxDepth
		parseOpts.MaxDepth = &depth
	}

	sources := make([]ports.DataSource, 0, len(inputs))
	for _, in := range inputs {
		sources = append(sources, source.NewFileSource(in, source.WithMaxSize(maxSize)))
	}

	converter := services.NewConversionService(
		parser.NewHTMLParser(parser.WithLogger(logger)),
		services.NewExtractionService(),
		services.WithPoolSize(opts.poolSize),
		services.WithTotalTimeout(opts.timeout),
		services.WithLogger(logger),
	)

	result, err := converter.Convert(cmd.Context(), sources, parseOpts)
	if err != nil {
		return err
	}

	if opts.output == "-" {
		if _, err := io.WriteString(cmd.OutOrStdout(), result.Text()); err != nil {
			return fmt.Errorf("failed to write text: %w", err)
		}
	} else if err := exporter.NewFileExporter(opts.output, format, logger).Export(result); err != nil {
		return err
	}

	// Сводка нужна человеку за терминалом, в конвейерах она мешает
	if opts.quiet || !term.IsTerminal(cmd.ErrOrStderr()) {
		return nil
	}
	return exporter.NewConsoleExporter(
		exporter.WithWriter(cmd.ErrOrStderr()),
		exporter.WithWidths(summaryWidths(term.Width(cmd.ErrOrStderr(), 80))),
	).Export(result)
}

// confirmOverwrite спрашивает разрешение на перезапись, если ввод идет с терминала.
func confirmOverwrite(cmd *cobra.Command, opts *options) error {
	if opts.force || opts.output == "-" {
		return nil
	}
	if _, err := os.Stat(opts.output); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check output file: %w", err)
	}

	if !term.IsTerminal(cmd.InOrStdin()) {
		return errOutputExists
	}
	ok, err := term.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Confirm(fmt.Sprintf("Overwrite %s?", opts.output))
	if err != nil {
		return err
	}
	if !ok {
		return errOutputExists
	}
	return nil
}

// summaryWidths растягивает колонку полного имени под ширину терминала.
func summaryWidths(termWidth int) exporter.Widths {
	w := exporter.DefaultWidths
	// 4 разделителя "|" и по пробелу с каждой стороны ячейки
	if free := termWidth - w.ShortName - w.Count - 10; free > w.FullName {
		w.FullName = free
	}
	return w
}
