package config

import (
	"crypto/subtle"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/olegiv/accesslog-ai-go/internal/ai"
	"github.com/spf13/viper"
)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	Files       string // -file, -f: path or glob, comma separated for several
	TopN        int    // -top: length of the path and client rankings
	Format      string // -format: text or json
	NoColor     bool   // -no-color: disable terminal styling
	EnableAI    bool   // -ai: request an AI assessment of the summary
	Provider    string // -provider: anthropic, ollama or lmstudio
	Notify      bool   // -notify: send the report to Telegram
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version

	set map[string]bool
}

// IsSet reports whether the named flag was given on the command line.
func (o *CLIOptions) IsSet(name string) bool {
	return o != nil && o.set[name]
}

var commandLine *flag.FlagSet

// ParseCLI parses os.Args and returns CLIOptions. Invalid flags exit the
// process with status 2.
func ParseCLI() *CLIOptions {
	opts, _ := parseArgs(os.Args[0], os.Args[1:], flag.ExitOnError, os.Stderr)
	return opts
}

// ParseArgs parses args without touching the process state.
func ParseArgs(args []string) (*CLIOptions, error) {
	return parseArgs("accesslog-analyzer", args, flag.ContinueOnError, io.Discard)
}

func parseArgs(name string, args []string, handling flag.ErrorHandling, output io.Writer) (*CLIOptions, error) {
	opts := &CLIOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet(name, handling)
	fs.SetOutput(output)
	fs.StringVar(&opts.Files, "file", "", "Access log path or glob; comma separated for several (.gz is decompressed)")
	fs.StringVar(&opts.Files, "f", "", "Shorthand for -file")
	fs.IntVar(&opts.TopN, "top", 0, "Number of top paths and client addresses to show")
	fs.StringVar(&opts.Format, "format", "", "Output format: text or json")
	fs.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&opts.EnableAI, "ai", false, "Ask an LLM to assess the summary")
	fs.StringVar(&opts.Provider, "provider", "", "LLM provider: anthropic, ollama or lmstudio")
	fs.BoolVar(&opts.Notify, "notify", false, "Send the report to Telegram")
	fs.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	fs.Usage = func() {
		out := fs.Output()
		_, _ = fmt.Fprintf(out, "Access Log AI Analyzer - Summarize web server access logs\n\n")
		_, _ = fmt.Fprintf(out, "Usage: %s [options]\n\n", name)
		_, _ = fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(out, "\nExamples:\n")
		_, _ = fmt.Fprintf(out, "  %s -f /var/log/nginx/access.log\n", name)
		_, _ = fmt.Fprintf(out, "  %s -f '/var/log/nginx/access.log*' -top 20\n", name)
		_, _ = fmt.Fprintf(out, "  %s -f access.log.1.gz,access.log -format json\n", name)
		_, _ = fmt.Fprintf(out, "  %s -f access.log -ai -notify\n", name)
		_, _ = fmt.Fprintf(out, "  %s -f access.log -ai -provider ollama\n", name)
		_, _ = fmt.Fprintf(out, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(out, "CLI arguments override environment variables.\n")
	}
	commandLine = fs

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	if opts.set["f"] {
		opts.set["file"] = true
	}

	return opts, nil
}

// PrintUsage prints the command-line usage information
func PrintUsage() {
	if commandLine == nil {
		_, _ = parseArgs(os.Args[0], nil, flag.ContinueOnError, os.Stderr)
	}
	commandLine.Usage()
}

// Config holds all application configuration
type Config struct {
	// Input
	AccessLogPath string // path, glob or comma separated list

	// Report
	TopN         int
	OutputFormat string // "text" or "json"
	Color        bool
	GeoIPEnabled bool

	// Application logging
	LogLevel   string
	LogDir     string
	LogConsole bool

	// AI assessment
	EnableAI         bool
	LLMProvider      string // "anthropic" (default), "ollama" or "lmstudio"
	AITimeoutSeconds int
	AIMaxTokens      int

	// Anthropic/Claude settings (LLMProvider = "anthropic")
	AnthropicAPIKey string
	ClaudeModel     string

	// Ollama settings (LLMProvider = "ollama")
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3.3:latest"

	// LM Studio settings (LLMProvider = "lmstudio")
	LMStudioBaseURL string // e.g., "http://localhost:1234"
	LMStudioModel   string // "local-model" or a loaded model's identifier

	// Telegram
	EnableTelegram         bool
	TelegramBotToken       string
	TelegramArchiveChannel int64
	TelegramAlertsChannel  int64 // Optional

	// Proxy
	HTTPProxy  string
	HTTPSProxy string
}

// Load loads configuration from .env file and environment variables.
// For CLI overrides, use LoadWithCLI instead.
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides.
// Priority: CLI args > OS environment > .env file > defaults
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv never overrides variables that are already exported.
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		AccessLogPath:          viper.GetString("ACCESS_LOG_PATH"),
		TopN:                   viper.GetInt("TOP_N"),
		OutputFormat:           strings.ToLower(viper.GetString("OUTPUT_FORMAT")),
		Color:                  viper.GetBool("COLOR"),
		GeoIPEnabled:           viper.GetBool("GEOIP_ENABLED"),
		LogLevel:               viper.GetString("LOG_LEVEL"),
		LogDir:                 viper.GetString("LOG_DIR"),
		LogConsole:             viper.GetBool("LOG_CONSOLE"),
		EnableAI:               viper.GetBool("ENABLE_AI"),
		LLMProvider:            strings.ToLower(viper.GetString("LLM_PROVIDER")),
		OllamaBaseURL:          viper.GetString("OLLAMA_BASE_URL"),
		OllamaModel:            viper.GetString("OLLAMA_MODEL"),
		LMStudioBaseURL:        viper.GetString("LMSTUDIO_BASE_URL"),
		LMStudioModel:          viper.GetString("LMSTUDIO_MODEL"),
		AnthropicAPIKey:        viper.GetString("ANTHROPIC_API_KEY"),
		ClaudeModel:            viper.GetString("CLAUDE_MODEL"),
		AITimeoutSeconds:       viper.GetInt("AI_TIMEOUT_SECONDS"),
		AIMaxTokens:            viper.GetInt("AI_MAX_TOKENS"),
		EnableTelegram:         viper.GetBool("ENABLE_TELEGRAM"),
		TelegramBotToken:       viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramArchiveChannel: viper.GetInt64("TELEGRAM_CHANNEL_ARCHIVE_ID"),
		TelegramAlertsChannel:  viper.GetInt64("TELEGRAM_CHANNEL_ALERTS_ID"),
		HTTPProxy:              viper.GetString("HTTP_PROXY"),
		HTTPSProxy:             viper.GetString("HTTPS_PROXY"),
	}

	config.applyCLI(cli)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyCLI copies explicitly given flags over the loaded values.
func (c *Config) applyCLI(cli *CLIOptions) {
	if cli == nil {
		return
	}
	if cli.IsSet("file") {
		c.AccessLogPath = cli.Files
	}
	if cli.IsSet("top") {
		c.TopN = cli.TopN
	}
	if cli.IsSet("format") {
		c.OutputFormat = strings.ToLower(strings.TrimSpace(cli.Format))
	}
	if cli.IsSet("no-color") {
		c.Color = !cli.NoColor
	}
	if cli.IsSet("ai") {
		c.EnableAI = cli.EnableAI
	}
	if cli.IsSet("provider") {
		c.LLMProvider = strings.ToLower(strings.TrimSpace(cli.Provider))
	}
	if cli.IsSet("notify") {
		c.EnableTelegram = cli.Notify
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("ACCESS_LOG_PATH", "/var/log/nginx/access.log")
	viper.SetDefault("TOP_N", 10)
	viper.SetDefault("OUTPUT_FORMAT", "text")
	viper.SetDefault("COLOR", true)
	viper.SetDefault("GEOIP_ENABLED", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")
	viper.SetDefault("LOG_CONSOLE", false)
	viper.SetDefault("ENABLE_AI", false)
	viper.SetDefault("LLM_PROVIDER", string(ai.ProviderAnthropic))
	viper.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	viper.SetDefault("OLLAMA_MODEL", "llama3.3:latest")
	viper.SetDefault("LMSTUDIO_BASE_URL", "http://localhost:1234")
	viper.SetDefault("LMSTUDIO_MODEL", "local-model")
	viper.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-5-20250929")
	viper.SetDefault("AI_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AI_MAX_TOKENS", 8000)
	viper.SetDefault("ENABLE_TELEGRAM", false)
}

var telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccessLogPath) == "" {
		return fmt.Errorf("ACCESS_LOG_PATH is required (or pass -file)")
	}

	if c.TopN < 1 || c.TopN > 1000 {
		return fmt.Errorf("TOP_N must be between 1 and 1000")
	}

	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		return fmt.Errorf("OUTPUT_FORMAT must be 'text' or 'json' (got: %s)", c.OutputFormat)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.EnableAI {
		if err := c.validateAI(); err != nil {
			return err
		}
	}

	if c.EnableTelegram {
		if err := c.validateTelegram(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateAI() error {
	if err := c.validateLLMProvider(); err != nil {
		return err
	}
	if c.AITimeoutSeconds < 30 || c.AITimeoutSeconds > 600 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be between 30 and 600")
	}
	if c.AIMaxTokens < 1000 || c.AIMaxTokens > 16000 {
		return fmt.Errorf("AI_MAX_TOKENS must be between 1000 and 16000")
	}
	return nil
}

// validateLLMProvider checks the settings of the selected provider only.
func (c *Config) validateLLMProvider() error {
	if !ai.IsValidProviderType(c.LLMProvider) {
		return fmt.Errorf("LLM_PROVIDER must be 'anthropic', 'ollama', or 'lmstudio' (got: %s)", c.LLMProvider)
	}

	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		if !constantTimePrefixMatch(c.AnthropicAPIKey, "sk-ant-") {
			return fmt.Errorf("ANTHROPIC_API_KEY must start with 'sk-ant-'")
		}
		if c.ClaudeModel == "" {
			return fmt.Errorf("CLAUDE_MODEL is required when LLM_PROVIDER=anthropic")
		}

	case ai.ProviderOllama:
		if c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_MODEL is required when LLM_PROVIDER=ollama")
		}
		if !isHTTPURL(c.OllamaBaseURL) {
			return fmt.Errorf("OLLAMA_BASE_URL must start with 'http://' or 'https://'")
		}

	case ai.ProviderLMStudio:
		// The model may be left empty; LM Studio then uses the loaded one.
		if !isHTTPURL(c.LMStudioBaseURL) {
			return fmt.Errorf("LMSTUDIO_BASE_URL must start with 'http://' or 'https://'")
		}
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// GetLLMModel returns the model name for the selected provider
func (c *Config) GetLLMModel() string {
	switch ai.ProviderType(c.LLMProvider) {
	case ai.ProviderOllama:
		return c.OllamaModel
	case ai.ProviderLMStudio:
		return c.LMStudioModel
	default:
		return c.ClaudeModel
	}
}

func (c *Config) validateTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when ENABLE_TELEGRAM=true")
	}
	if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}

	if c.TelegramArchiveChannel == 0 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID is required when ENABLE_TELEGRAM=true")
	}
	if c.TelegramArchiveChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ARCHIVE_ID must be a supergroup/channel ID (starts with -100)")
	}

	if c.TelegramAlertsChannel != 0 && c.TelegramAlertsChannel > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID must be a supergroup/channel ID (starts with -100)")
	}
	return nil
}

// HasAlertsChannel returns true if alerts channel is configured
func (c *Config) HasAlertsChannel() bool {
	return c.TelegramAlertsChannel != 0
}

// GetProxyURL returns the appropriate proxy URL for HTTP/HTTPS requests
func (c *Config) GetProxyURL(isHTTPS bool) string {
	if isHTTPS && c.HTTPSProxy != "" {
		return c.HTTPSProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return ""
}

// constantTimePrefixMatch checks if s starts with prefix using constant-time comparison.
// Returns false if s is shorter than prefix.
func constantTimePrefixMatch(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s[:len(prefix)]), []byte(prefix)) == 1
}
