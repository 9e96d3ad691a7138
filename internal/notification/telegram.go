package notification

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
	"github.com/olegiv/accesslog-ai-go/internal/ai"
	internalerrors "github.com/olegiv/accesslog-ai-go/internal/errors"
	"github.com/olegiv/accesslog-ai-go/internal/report"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same channel
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of attempts for sending a message
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second
	// defaultRetryAfter is used when a 429 does not say how long to wait
	defaultRetryAfter = 30

	// Entries per ranking in the message; the full lists live in the report.
	messageTopStatuses = 5
	messageTopEntries  = 5
)

// sender is the part of the bot API the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient handles Telegram notifications
type TelegramClient struct {
	bot             sender
	username        string
	archiveChannel  int64
	alertsChannel   int64
	hostname        string
	lastMessageTime time.Time
	sleep           func(time.Duration)
}

// NewTelegramClient creates a new Telegram client. An empty proxyURL means no
// proxy.
func NewTelegramClient(botToken string, archiveChannel, alertsChannel int64, proxyURL string) (*TelegramClient, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, internalerrors.Wrapf(err, "invalid proxy URL")
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		// The token is part of every request URL.
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:            bot,
		username:       bot.Self.UserName,
		archiveChannel: archiveChannel,
		alertsChannel:  alertsChannel,
		hostname:       hostname,
		sleep:          time.Sleep,
	}, nil
}

// SendReport sends the summary, and the AI assessment when there is one, to
// the archive channel. The alerts channel also gets it when configured and
// the assessment warrants an alert. a and stats may be nil.
func (t *TelegramClient) SendReport(s *accesslog.Summary, a *ai.Analysis, stats *ai.Stats) error {
	message := t.formatMessage(s, a, stats)

	if err := t.sendToChannel(t.archiveChannel, message); err != nil {
		return fmt.Errorf("failed to send to archive channel: %w", err)
	}

	if t.alertsChannel != 0 && a != nil && ai.ShouldTriggerAlert(a.TrafficStatus) {
		if err := t.sendToChannel(t.alertsChannel, message); err != nil {
			return fmt.Errorf("failed to send to alerts channel: %w", err)
		}
	}

	return nil
}

// formatMessage renders the report as MarkdownV2.
func (t *TelegramClient) formatMessage(s *accesslog.Summary, a *ai.Analysis, stats *ai.Stats) string {
	const formattedListTemplate = "%d\\. %s\n"

	var msg strings.Builder

	msg.WriteString("🌐 *Access Log Report*\n")
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n", escapeMarkdown(time.Now().Format("2006-01-02 15:04:05"))))
	if a != nil {
		msg.WriteString(fmt.Sprintf("%s *Status\\:* %s\n", ai.GetStatusEmoji(a.TrafficStatus), escapeMarkdown(a.TrafficStatus)))
	}
	msg.WriteString("\n")

	msg.WriteString("📋 *Traffic*\n")
	msg.WriteString(fmt.Sprintf("• Parsed requests\\: %d\n", s.TotalParsed))
	if s.SkippedLines > 0 {
		msg.WriteString(fmt.Sprintf("• Skipped lines\\: %d\n", s.SkippedLines))
	}
	msg.WriteString(fmt.Sprintf("• 404 responses\\: %d\n", s.NotFound))
	msg.WriteString(fmt.Sprintf("• Distinct status codes\\: %d\n\n", s.DistinctStatuses()))

	writeRanking := func(title string, entries []accesslog.Count, limit int, label func(string) string) {
		if len(entries) == 0 {
			return
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}
		msg.WriteString(title + "\n")
		for i, e := range entries {
			msg.WriteString(fmt.Sprintf("%d\\. `%s` — %d\n", i+1, escapeCode(label(e.Key)), e.Count))
		}
		msg.WriteString("\n")
	}
	plain := func(k string) string { return k }

	writeRanking("🔢 *Status codes*", s.TopStatuses(messageTopStatuses), messageTopStatuses, plain)
	writeRanking("📄 *Top paths*", s.TopPaths, messageTopEntries, plain)
	writeRanking("👤 *Top clients*", s.TopClients, messageTopEntries, plain)
	writeRanking("🤖 *Top user agents*", s.TopUserAgents, messageTopEntries, report.TruncateAgent)

	if a == nil {
		return msg.String()
	}

	msg.WriteString("📊 *Summary*\n")
	msg.WriteString(escapeMarkdown(a.Summary))
	msg.WriteString("\n\n")

	writeList := func(header string, items []string) {
		if len(items) == 0 {
			return
		}
		msg.WriteString(header + "\n")
		for i, item := range items {
			msg.WriteString(fmt.Sprintf(formattedListTemplate, i+1, escapeMarkdown(item)))
		}
		msg.WriteString("\n")
	}
	writeList(fmt.Sprintf("🔴 *Threats* \\(%d\\)", len(a.Threats)), a.Threats)
	writeList(fmt.Sprintf("⚡ *Warnings* \\(%d\\)", len(a.Warnings)), a.Warnings)
	writeList("💡 *Recommendations*", a.Recommendations)

	if len(a.Metrics) > 0 {
		msg.WriteString("📈 *Key Metrics*\n")
		for _, key := range sortedKeys(a.Metrics) {
			valueStr := fmt.Sprintf("%v", a.Metrics[key])
			msg.WriteString(fmt.Sprintf("• %s\\: %s\n", escapeMarkdown(key), escapeMarkdown(valueStr)))
		}
		msg.WriteString("\n")
	}

	if stats != nil {
		msg.WriteString("⚙️ *AI Stats*\n")
		if stats.Provider != "" {
			msg.WriteString(fmt.Sprintf("• Model\\: %s \\(%s\\)\n", escapeMarkdown(stats.Model), escapeMarkdown(stats.Provider)))
		}
		msg.WriteString(fmt.Sprintf("• Tokens\\: %d in, %d out\n", stats.InputTokens, stats.OutputTokens))
		if stats.CacheReadTokens > 0 || stats.CacheCreationTokens > 0 {
			msg.WriteString(fmt.Sprintf("• Cache Read\\: %d tokens\n", stats.CacheReadTokens))
		}
		msg.WriteString(fmt.Sprintf("• Cost\\: %s\n", escapeMarkdown(fmt.Sprintf("$%.4f", stats.CostUSD))))
		msg.WriteString(fmt.Sprintf("• Duration\\: %s\n", escapeMarkdown(fmt.Sprintf("%.2fs", stats.DurationSeconds))))
	}

	return msg.String()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(channelID int64, message string) error {
	for _, part := range splitMessage(message) {
		t.waitForRateLimit()

		msgConfig := tgbotapi.NewMessage(channelID, part)
		msgConfig.ParseMode = tgbotapi.ModeMarkdownV2
		msgConfig.DisableWebPagePreview = true

		if err := t.sendWithRetry(msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = time.Now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages
func (t *TelegramClient) waitForRateLimit() {
	if t.lastMessageTime.IsZero() {
		return
	}

	elapsed := time.Since(t.lastMessageTime)
	if elapsed < minMessageInterval {
		t.sleep(minMessageInterval - elapsed)
	}
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		if isRateLimitError(err) {
			t.sleep(time.Duration(extractRetryAfter(err)) * time.Second)
			continue
		}

		t.sleep(baseRetryDelay * time.Duration(1<<(attempt-1))) // 2s, 4s
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d attempts", maxRetries)
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter returns the wait in seconds requested by a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()
	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		var seconds int
		if _, err := fmt.Sscanf(errStr[idx+len("retry after "):], "%d", &seconds); err == nil && seconds > 0 {
			return seconds
		}
	}

	return defaultRetryAfter
}

// splitMessage splits a long message on line boundaries. Lines longer than
// the limit are cut on rune boundaries.
func splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	var currentMsg strings.Builder

	for _, line := range strings.Split(message, "\n") {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			// Leave room for the newline appended below.
			for len(line) > maxMessageLength-1 {
				cut := maxMessageLength - 1
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				messages = append(messages, line[:cut])
				line = line[cut:]
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

// markdownReplacer escapes the MarkdownV2 special characters, backslash first.
var markdownReplacer = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`, ":", `\:`,
)

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(text string) string {
	return markdownReplacer.Replace(text)
}

// codeReplacer escapes text inside a MarkdownV2 code span.
var codeReplacer = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// escapeCode escapes text for use inside `...`. Request paths and user agents
// are shown verbatim there.
func escapeCode(text string) string {
	return codeReplacer.Replace(text)
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":        t.username,
		"archive_channel": t.archiveChannel,
		"alerts_channel":  t.alertsChannel,
		"hostname":        t.hostname,
	}
}

// Close releases the client.
func (t *TelegramClient) Close() error {
	if bot, ok := t.bot.(*tgbotapi.BotAPI); ok {
		bot.StopReceivingUpdates()
	}
	return nil
}
