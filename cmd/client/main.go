// Command client отправляет экспорты VkOpt на сервер конвертации и печатает результат.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vkopt-message-parser/internal/adapters/exporter"
	"vkopt-message-parser/internal/apiclient"
	"vkopt-message-parser/internal/cache"
	"vkopt-message-parser/internal/domain"
	vklog "vkopt-message-parser/internal/log"
)

type options struct {
	server           string
	output           string
	format           string
	onlyIncludeNames []string
	excludeNames     []string
	sinceDate        string
	delimiter        string
	maxDepth         int
	interval         time.Duration
	timeout          time.Duration
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
		Use:   "client [flags] FILE...",
		Short: "Convert VkOpt exports on a remote server",
		Long: `client uploads VkOpt HTML exports to the conversion server in the given order,
waits for the task and writes the result. If the server already has a result for
the same files and options in its cache, nothing is uploaded.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "Server address")
	f.StringVarP(&opts.output, "output", "o", "-", `Output file ("-" writes text to stdout)`)
	f.StringVar(&opts.format, "format", string(exporter.FormatText), "Output format: text, records or xlsx")
	f.StringSliceVar(&opts.onlyIncludeNames, "only-include-names", nil, "Keep only messages from these short names")
	f.StringSliceVar(&opts.excludeNames, "exclude-names", nil, "Drop messages from these short names")
	f.StringVar(&opts.sinceDate, "since-date", "", `Drop messages older than this date, e.g. "2019.01.01 13:00:00"`)
	f.StringVar(&opts.delimiter, "text-delimiter", "\n", "String appended after every message body")
	f.IntVar(&opts.maxDepth, "max-depth", -1, "Maximum depth of forwarded messages to keep (-1 for no limit)")
	f.DurationVar(&opts.interval, "interval", 2*time.Second, "Task status polling interval")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	cmd.MarkFlagsMutuallyExclusive("only-include-names", "exclude-names")
	return cmd
}

func run(cmd *cobra.Command, opts *options, paths []string) error {
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

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	client := apiclient.New(opts.server)
	taskID, err := startTask(ctx, client, paths, parseOpts, logger)
	if err != nil {
		return err
	}
	logger.Info("Task created", "task_id", taskID)

	if _, err := client.Wait(ctx, taskID, opts.interval, func(s *apiclient.TaskStatus) {
		logger.Debug("Task status", "task_id", taskID, "status", s.Status)
	}); err != nil {
		return err
	}

	text, err := client.GetText(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to get text: %w", err)
	}
	if opts.output == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}

	result := &domain.ConversionResult{
		Chats: []domain.ParsedChat{{Source: strings.Join(baseNames(paths), ", "), Text: text}},
	}
	if format != exporter.FormatText {
		messages, participants, err := client.GetAllMessages(ctx, taskID, 500)
		if err != nil {
			return err
		}
		result.Chats[0].Messages = messages
		result.Participants = participants
	}
	return exporter.NewFileExporter(opts.output, format, logger).Export(result)
}

// startTask пробует взять результат из кэша сервера и загружает файлы только при промахе.
func startTask(ctx context.Context, client *apiclient.Client, paths []string, opts domain.ParseOptions, logger *slog.Logger) (string, error) {
	hashes := make([]string, 0, len(paths))
	for _, p := range paths {
		h, err := cache.CalculateFileHash(p)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, h)
	}

	key, err := cache.ResultKey(hashes, opts)
	if err != nil {
		return "", err
	}
	taskID, err := client.StartByHash(ctx, key)
	if err == nil {
		logger.Info("Result found in server cache", "hash", key)
		return taskID, nil
	}
	if !errors.Is(err, apiclient.ErrNotCached) {
		logger.Warn("Lookup by hash failed, uploading files", "error", err)
	}

	files := make([]apiclient.DocumentFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", p, err)
		}
		defer f.Close()
		files = append(files, apiclient.DocumentFile{Name: filepath.Base(p), Content: f})
	}
	return client.StartTask(ctx, files, opts)
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}
