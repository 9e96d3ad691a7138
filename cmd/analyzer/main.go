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

	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
	"github.com/olegiv/accesslog-ai-go/internal/ai"
	"github.com/olegiv/accesslog-ai-go/internal/config"
	"github.com/olegiv/accesslog-ai-go/internal/geoip"
	"github.com/olegiv/accesslog-ai-go/internal/logging"
	"github.com/olegiv/accesslog-ai-go/internal/notification"
	"github.com/olegiv/accesslog-ai-go/internal/report"
	"github.com/olegiv/accesslog-ai-go/internal/sources"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli := config.ParseCLI()

	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	if cli.ShowVersion {
		fmt.Printf("accesslog-analyzer %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// The console logger writes to stdout, which carries the JSON document.
	log := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Console: cfg.LogConsole && format == report.FormatText,
	})
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Str("version", version).Msg("Starting Access Log AI Analyzer")

	if err := runAnalyzer(ctx, cfg, format, os.Stdout, log); err != nil {
		log.Error().Err(err).Msg("Analysis failed")
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFailure
	}

	log.Info().Msg("Analysis completed successfully")
	return exitSuccess
}

func runAnalyzer(ctx context.Context, cfg *config.Config, format report.Format, out io.Writer, log *logging.SecureLogger) error {
	startTime := time.Now()

	files, err := sources.Resolve(sources.SplitList(cfg.AccessLogPath))
	if err != nil {
		return fmt.Errorf("failed to resolve input files: %w", err)
	}

	for path, size := range sources.Describe(files) {
		log.Debug().Str("path", path).Int64("size_bytes", size).Msg("Input file")
	}
	log.Info().Strs("files", files).Int("top_n", cfg.TopN).Msg("Reading access logs...")

	summary, err := accesslog.AnalyzeFiles(ctx, files, cfg.TopN)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return fmt.Errorf("failed to analyze access logs: %w", err)
	}

	log.Info().
		Int("parsed", summary.TotalParsed).
		Int("skipped", summary.SkippedLines).
		Int("not_found", summary.NotFound).
		Int("distinct_statuses", summary.DistinctStatuses()).
		Msg("Summary built")

	analysis, stats := assess(ctx, cfg, summary, log)

	if err := render(out, cfg, format, summary, analysis); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.EnableTelegram {
		if err := notify(cfg, summary, analysis, stats, log); err != nil {
			return err
		}
	}

	log.Info().
		Float64("total_duration_s", time.Since(startTime).Seconds()).
		Msg("All operations completed successfully")

	return nil
}

// assess asks the configured provider for an opinion on the summary. It
// returns nil values when AI is disabled or fails; the report goes out anyway.
func assess(ctx context.Context, cfg *config.Config, summary *accesslog.Summary, log *logging.SecureLogger) (*ai.Analysis, *ai.Stats) {
	if !cfg.EnableAI {
		return nil, nil
	}

	provider, err := newProvider(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize AI provider, continuing without assessment")
		return nil, nil
	}

	if checker, ok := provider.(ai.ConnectionChecker); ok {
		if err := checker.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Str("provider", provider.GetProviderName()).
				Msg("AI provider is not ready, continuing without assessment")
			return nil, nil
		}
	}

	modelInfo := provider.GetModelInfo()
	log.Info().
		Str("provider", provider.GetProviderName()).
		Interface("model", modelInfo["model"]).
		Msg("Analyzing summary with AI...")

	analysis, stats, err := provider.AnalyzeSummary(ctx, summary)
	if err != nil {
		log.Warn().Err(err).Msg("AI analysis failed, continuing without assessment")
		return nil, nil
	}

	log.Info().
		Str("status", analysis.TrafficStatus).
		Int("threats", len(analysis.Threats)).
		Int("warnings", len(analysis.Warnings)).
		Int("recommendations", len(analysis.Recommendations)).
		Float64("cost_usd", stats.CostUSD).
		Float64("duration_s", stats.DurationSeconds).
		Msg("AI analysis completed")

	log.Debug().
		Int("input_tokens", stats.InputTokens).
		Int("output_tokens", stats.OutputTokens).
		Int("cache_creation_tokens", stats.CacheCreationTokens).
		Int("cache_read_tokens", stats.CacheReadTokens).
		Msg("Token usage details")

	return analysis, stats
}

// newProvider builds the client selected by LLM_PROVIDER. Local servers are
// reached directly; only Anthropic goes through the configured proxy.
func newProvider(cfg *config.Config) (ai.Provider, error) {
	switch ai.ProviderType(cfg.LLMProvider) {
	case ai.ProviderAnthropic:
		client, err := ai.NewClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, cfg.GetProxyURL(true), cfg.AITimeoutSeconds, cfg.AIMaxTokens)
		if err != nil {
			return nil, err
		}
		return client, nil

	case ai.ProviderOllama:
		client, err := ai.NewOllamaClient(ai.OllamaConfig{
			BaseURL:        cfg.OllamaBaseURL,
			Model:          cfg.OllamaModel,
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	case ai.ProviderLMStudio:
		client, err := ai.NewLMStudioClient(ai.LMStudioConfig{
			BaseURL:        cfg.LMStudioBaseURL,
			Model:          cfg.LMStudioModel,
			TimeoutSeconds: cfg.AITimeoutSeconds,
			MaxTokens:      cfg.AIMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.LLMProvider)
	}
}

func render(out io.Writer, cfg *config.Config, format report.Format, summary *accesslog.Summary, analysis *ai.Analysis) error {
	if format == report.FormatJSON {
		return report.RenderJSON(out, summary, analysis)
	}

	opts := report.TextOptions{Color: cfg.Color}
	if cfg.GeoIPEnabled {
		opts.Locator = geoip.NewLocator()
	}

	if err := report.RenderText(out, summary, opts); err != nil {
		return err
	}
	if analysis != nil {
		return report.RenderAnalysis(out, analysis, opts)
	}
	return nil
}

func notify(cfg *config.Config, summary *accesslog.Summary, analysis *ai.Analysis, stats *ai.Stats, log *logging.SecureLogger) error {
	telegramClient, err := notification.NewTelegramClient(
		cfg.TelegramBotToken,
		cfg.TelegramArchiveChannel,
		cfg.TelegramAlertsChannel,
		cfg.GetProxyURL(true),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	defer func() {
		if err := telegramClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Telegram client")
		}
	}()

	botInfo := telegramClient.GetBotInfo()
	log.Info().Interface("username", botInfo["username"]).Msg("Sending Telegram notifications...")

	if err := telegramClient.SendReport(summary, analysis, stats); err != nil {
		return fmt.Errorf("failed to send Telegram notification: %w", err)
	}

	if cfg.HasAlertsChannel() && analysis != nil && ai.ShouldTriggerAlert(analysis.TrafficStatus) {
		log.Info().Str("status", analysis.TrafficStatus).Msg("Alert notification sent (status warrants attention)")
	}
	return nil
}
