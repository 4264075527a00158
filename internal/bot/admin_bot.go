package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"race_arcade/internal/domain"
	"race_arcade/internal/logger"

	"github.com/benbjohnson/clock"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Accounts interface {
	GetByWallet(ctx context.Context, wallet string) (*domain.User, error)
}

type Purchases interface {
	GetByUser(ctx context.Context, wallet string, limit int) ([]domain.Transaction, error)
	SalesSince(ctx context.Context, since time.Time) (*domain.SalesSummary, error)
}

type Boards interface {
	GetDaily(ctx context.Context, wallet string, playDate time.Time) (*domain.LeaderboardEntry, error)
	TopDaily(ctx context.Context, playDate time.Time, limit int) ([]domain.LeaderboardEntry, error)
}

type AuditTrail interface {
	GetByWallet(ctx context.Context, wallet string, limit int) ([]*domain.AuditLog, error)
	GetByCategory(ctx context.Context, category string, limit int) ([]*domain.AuditLog, error)
}

type Archiver interface {
	Archive(ctx context.Context) (*domain.ArchiveResult, error)
}

// Deps are the read models and jobs the bot exposes to operators.
type Deps struct {
	Accounts  Accounts
	Purchases Purchases
	Boards    Boards
	Audit     AuditTrail
	Archiver  Archiver
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// AdminBot answers operator commands over Telegram and posts purchase alerts.
type AdminBot struct {
	api      *tgbotapi.BotAPI
	out      sender
	deps     Deps
	adminIDs []int64
	clock    clock.Clock
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewAdminBot creates a new admin bot
func NewAdminBot(token string, deps Deps, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newAdminBot(api, deps, adminIDs, clock.New())
	b.api = api
	b.log.Info("admin bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newAdminBot(out sender, deps Deps, adminIDs []int64, clk clock.Clock) *AdminBot {
	return &AdminBot{
		out:      out,
		deps:     deps,
		adminIDs: adminIDs,
		clock:    clk,
		stopCh:   make(chan struct{}),
		log:      logger.Component("admin_bot"),
	}
}

// Start starts listening for commands
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || msg.From == nil || !msg.IsCommand() || !b.isAdmin(msg.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(msg)
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply := tgbotapi.NewMessage(msg.Chat.ID, b.dispatch(ctx, msg.Command(), strings.TrimSpace(msg.CommandArguments())))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.out.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func (b *AdminBot) dispatch(ctx context.Context, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "stats":
		return b.handleStats(ctx)
	case "user":
		return b.handleUser(ctx, args)
	case "top":
		return b.handleTop(ctx, args)
	case "audit":
		return b.handleAudit(ctx, args)
	case "archives":
		return b.handleArchives(ctx)
	case "archive":
		return b.handleArchive(ctx)
	default:
		return "❌ Unknown command. Use /help for the list."
	}
}

const helpMessage = `<b>🤖 Operator commands</b>

<b>📊 Sales and boards:</b>
/stats - Purchases today and this week
/top [limit] - Today's leaderboard
/archives - Recent archive runs

<b>👤 Wallets:</b>
/user &lt;wallet&gt; - Balance, purchases and today's best
/audit &lt;wallet&gt; - Recent ledger actions

<b>🗄 Jobs:</b>
/archive - Archive the daily leaderboard now`

func (b *AdminBot) today() time.Time {
	now := b.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (b *AdminBot) handleStats(ctx context.Context) string {
	today := b.today()
	day, err := b.deps.Purchases.SalesSince(ctx, today)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	week, err := b.deps.Purchases.SalesSince(ctx, today.AddDate(0, 0, -6))
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}

	return fmt.Sprintf(`<b>📊 Sales</b>

<b>Today:</b>
• Purchases: %d
• Credits sold: %d
• Revenue: %s
• Buyers: %d

<b>Last 7 days:</b>
• Purchases: %d
• Credits sold: %d
• Revenue: %s
• Buyers: %d`,
		day.Purchases, day.Credits, day.Revenue.String(), day.Buyers,
		week.Purchases, week.Credits, week.Revenue.String(), week.Buyers,
	)
}

func (b *AdminBot) handleUser(ctx context.Context, args string) string {
	wallet, err := domain.NormalizeWallet(args)
	if err != nil {
		return "❌ Usage: /user &lt;wallet&gt;"
	}

	user, err := b.deps.Accounts.GetByWallet(ctx, wallet)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if user == nil {
		return "❌ Wallet not found"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>👤 %s</b>\n\n", wallet)
	fmt.Fprintf(&sb, "• Credits: %d\n• Games played: %d\n• Total spent: %s\n", user.Credits, user.TotalGamesPlayed, user.TotalSpent.String())
	if user.LastPlayed != nil {
		fmt.Fprintf(&sb, "• Last played: %s\n", user.LastPlayed.UTC().Format(time.RFC3339))
	}

	if entry, err := b.deps.Boards.GetDaily(ctx, wallet, b.today()); err == nil && entry != nil {
		fmt.Fprintf(&sb, "• Today's best: %d (%d games)\n", entry.BestScore, entry.GamesPlayedToday)
	}

	txs, err := b.deps.Purchases.GetByUser(ctx, wallet, 5)
	if err == nil && len(txs) > 0 {
		sb.WriteString("\n<b>Recent purchases:</b>\n")
		for _, t := range txs {
			fmt.Fprintf(&sb, "• %d credits, %s, %s <code>%s</code>\n", t.CreditsAdded, t.Amount.String(), t.Status, t.TransactionHash)
		}
	}
	return sb.String()
}

func (b *AdminBot) handleTop(ctx context.Context, args string) string {
	limit := 10
	if args != "" {
		if n, err := strconv.Atoi(args); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}

	entries, err := b.deps.Boards.TopDaily(ctx, b.today(), limit)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(entries) == 0 {
		return "No scores today yet"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>🏁 Today's top %d</b>\n\n", limit)
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. <code>%s</code> — %d (%d games)\n", i+1, shortWallet(e.WalletAddress), e.BestScore, e.GamesPlayedToday)
	}
	return sb.String()
}

func (b *AdminBot) handleAudit(ctx context.Context, args string) string {
	wallet, err := domain.NormalizeWallet(args)
	if err != nil {
		return "❌ Usage: /audit &lt;wallet&gt;"
	}

	logs, err := b.deps.Audit.GetByWallet(ctx, wallet, 10)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(logs) == 0 {
		return "No audit entries for this wallet"
	}
	return formatAudit("🧾 Audit "+shortWallet(wallet), logs)
}

func (b *AdminBot) handleArchives(ctx context.Context) string {
	logs, err := b.deps.Audit.GetByCategory(ctx, domain.AuditCategoryLeaderboard, 5)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(logs) == 0 {
		return "No archive runs recorded"
	}
	return formatAudit("🗄 Archive runs", logs)
}

func (b *AdminBot) handleArchive(ctx context.Context) string {
	res, err := b.deps.Archiver.Archive(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Archive failed: %v", err)
	}
	b.log.Info("archive triggered from bot", "archived_count", res.ArchivedCount)
	return fmt.Sprintf("✅ Archived %d rows at %s", res.ArchivedCount, res.ArchiveDate.Format(time.RFC3339))
}

// NotifyPurchase alerts every admin about a credited purchase without blocking the caller.
func (b *AdminBot) NotifyPurchase(wallet string, pkg domain.Package, txHash string) {
	message := fmt.Sprintf(`🔔 <b>Credits purchased</b>

👛 Wallet: <code>%s</code>
🎟 Package: %d credits (%s)
🔗 Tx: <code>%s</code>`, wallet, pkg.Credits, pkg.Price.String(), txHash)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, adminID := range b.adminIDs {
			msg := tgbotapi.NewMessage(adminID, message)
			msg.ParseMode = tgbotapi.ModeHTML
			if _, err := b.out.Send(msg); err != nil {
				b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
			}
		}
	}()
}

func formatAudit(title string, logs []*domain.AuditLog) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n\n", title)
	for _, l := range logs {
		fmt.Fprintf(&sb, "• %s %s %s\n", l.CreatedAt.UTC().Format("01-02 15:04"), l.Action, html.EscapeString(formatDetails(l.Details)))
	}
	return sb.String()
}

func formatDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}

func shortWallet(w string) string {
	if len(w) <= 12 {
		return w
	}
	return w[:6] + "…" + w[len(w)-4:]
}
