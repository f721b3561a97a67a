package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NgigiN/ledger/internal/config"
	"github.com/NgigiN/ledger/internal/importer"
	"github.com/NgigiN/ledger/internal/logger"
	"github.com/NgigiN/ledger/internal/storage"
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Importer is the part of importer.Service the bot needs.
type Importer interface {
	ImportReport(ctx context.Context, path string) (*importer.Report, error)
}

// Ledger is the read side of the store used by the summary commands.
type Ledger interface {
	ListCategories(ctx context.Context) ([]storage.Category, error)
	CategorySummary(ctx context.Context) ([]storage.CategoryTotals, error)
}

type Bot struct {
	session    *discordgo.Session
	importer   Importer
	ledger     Ledger
	log        zerolog.Logger
	channelID  string
	importDir  string
	healthAddr string
	health     *http.Server
	httpClient *http.Client
	startTime  time.Time
}

func NewBot(cfg *config.Config, imp Importer, ledger Ledger, log zerolog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:    session,
		importer:   imp,
		ledger:     ledger,
		log:        log,
		channelID:  cfg.DiscordChannelId,
		importDir:  cfg.ImportDir,
		healthAddr: cfg.HealthAddr,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		startTime:  time.Now(),
	}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	b.health = &http.Server{Addr: b.healthAddr, Handler: b.healthHandler()}
	go func() {
		if err := b.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.log.Error().Err(err).Msg("health server stopped")
		}
	}()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (b *Bot) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.stopHealth(ctx)
	b.session.Close()
}

func (b *Bot) stopHealth(ctx context.Context) {
	if b.health == nil {
		return
	}
	if err := b.health.Shutdown(ctx); err != nil {
		b.log.Error().Err(err).Msg("health server shutdown failed")
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return //bot's messages
	}

	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	reply := b.dispatch(m.Message)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.log.Error().Err(err).Str("channel", m.ChannelID).Msg("failed to send reply")
	}
}

// dispatch runs the command in msg and returns the reply text, or "" when
// the message is not a command.
func (b *Bot) dispatch(msg *discordgo.Message) string {
	ctx := logger.WithContext(context.Background(), b.log.With().Str("message", msg.ID).Logger())

	switch command(msg.Content) {
	case "!import":
		return b.handleImport(ctx, msg.Attachments)
	case "!summary":
		return b.handleSummary(ctx)
	case "!categories":
		return b.handleCategories(ctx)
	default:
		return ""
	}
}

func command(content string) string {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

func (b *Bot) handleImport(ctx context.Context, attachments []*discordgo.MessageAttachment) string {
	var csvFile *discordgo.MessageAttachment
	for _, a := range attachments {
		if strings.HasSuffix(strings.ToLower(a.Filename), ".csv") {
			csvFile = a
			break
		}
	}
	if csvFile == nil {
		return "Attach a CSV file to import.\nColumns: title, type (income|outcome), value, category"
	}

	path, err := b.download(ctx, csvFile.URL)
	if err != nil {
		b.log.Error().Err(err).Str("file", csvFile.Filename).Msg("download failed")
		return fmt.Sprintf("Failed to download %s: %v", csvFile.Filename, err)
	}

	report, err := b.importer.ImportReport(ctx, path)
	if err != nil {
		b.log.Error().Err(err).Str("file", csvFile.Filename).Msg("import failed")
		os.Remove(path)
		return fmt.Sprintf("Failed to import %s: %v", csvFile.Filename, err)
	}

	return formatImport(csvFile.Filename, report)
}

// download stages the attachment at url in the import directory.
func (b *Bot) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp(b.importDir, "import-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func formatImport(filename string, report *importer.Report) string {
	if len(report.Transactions) == 0 {
		return fmt.Sprintf("No transactions found in %s", filename)
	}

	response := fmt.Sprintf("📥 **Imported %d transactions** from %s\n", len(report.Transactions), filename)
	if len(report.Created) > 0 {
		titles := make([]string, 0, len(report.Created))
		for _, c := range report.Created {
			titles = append(titles, c.Title)
		}
		response += fmt.Sprintf("New categories: %s\n", strings.Join(titles, ", "))
	}
	if report.Skipped > 0 {
		response += fmt.Sprintf("Skipped %d incomplete rows\n", report.Skipped)
	}
	return strings.TrimSuffix(response, "\n")
}

func (b *Bot) handleSummary(ctx context.Context) string {
	summary, err := b.ledger.CategorySummary(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("summary failed")
		return fmt.Sprintf("Failed to get summary: %v", err)
	}
	return formatSummary(summary)
}

func formatSummary(summary []storage.CategoryTotals) string {
	if len(summary) == 0 {
		return "No transactions found."
	}

	response := "📊 **Transaction Summary**\n\n"
	var total storage.CategoryTotals
	for _, row := range summary {
		title := row.Title
		if title == "" {
			title = "Uncategorized"
		}
		response += fmt.Sprintf("**%s**: +%s / -%s\n", title, row.Income.StringFixed(2), row.Outcome.StringFixed(2))
		total.Income = total.Income.Add(row.Income)
		total.Outcome = total.Outcome.Add(row.Outcome)
	}

	response += fmt.Sprintf("\n**Balance**: %s", total.Balance().StringFixed(2))
	return response
}

func (b *Bot) handleCategories(ctx context.Context) string {
	categories, err := b.ledger.ListCategories(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("listing categories failed")
		return fmt.Sprintf("Failed to list categories: %v", err)
	}
	if len(categories) == 0 {
		return "No categories yet."
	}

	titles := make([]string, 0, len(categories))
	for _, c := range categories {
		titles = append(titles, c.Title)
	}
	return "🏷️ **Categories**: " + strings.Join(titles, ", ")
}

func (b *Bot) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(b.startTime)
		status := "healthy"
		connected := b.session != nil && b.session.State != nil && b.session.DataReady

		w.Header().Set("Content-Type", "application/json")
		if !connected {
			status = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		fmt.Fprintf(w, `{"status":%q,"uptime":%q,"discord_connected":%t,"timestamp":%q}`,
			status, uptime.String(), connected, time.Now().Format(time.RFC3339))
	})
	return mux
}
