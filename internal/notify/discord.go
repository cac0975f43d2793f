// Package notify pushes game events into a Discord channel so players
// following along in chat see auctions, trades, and regime shifts as they
// happen.
package notify

import (
	"fmt"
	"log/slog"

	"tycoon/internal/events"

	"github.com/bwmarrin/discordgo"
)

type Discord struct {
	session   *discordgo.Session
	channelID string
	log       *slog.Logger
}

// NewDiscord opens a Discord session with the given bot token. The caller
// owns the returned notifier and must Close it on shutdown.
func NewDiscord(token, channelID string, logger *slog.Logger) (*Discord, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := sess.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return &Discord{session: sess, channelID: channelID, log: logger}, nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// Publish formats and sends one event. Sends are best-effort: a chat outage
// must never block or fail a game command.
func (d *Discord) Publish(ev events.Event) {
	msg := format(ev)
	if msg == "" {
		return
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, msg); err != nil {
		d.log.Error("discord send failed", "kind", ev.Kind(), "err", err)
	}
}

func format(ev events.Event) string {
	switch e := ev.(type) {
	case events.AuctionStarted:
		return fmt.Sprintf("🔨 Auction opened for **%s** (minimum bid $%d)", e.PropertyID, e.MinimumBid)
	case events.AuctionBid:
		return fmt.Sprintf("💰 %s bids $%d on auction %s", e.PlayerID, e.Amount, e.AuctionID)
	case events.AuctionEnded:
		if !e.Sold {
			return fmt.Sprintf("🔨 Auction for **%s** closed with no sale", e.PropertyID)
		}
		return fmt.Sprintf("🏆 %s wins **%s** for $%d", e.WinnerID, e.PropertyID, e.Amount)
	case events.TradeProposed:
		if e.Flagged {
			return fmt.Sprintf("🚩 %s proposed a trade to %s, held for review (%s)", e.FromID, e.ToID, e.Reason)
		}
		return fmt.Sprintf("🤝 %s proposed a trade to %s", e.FromID, e.ToID)
	case events.TradeCompleted:
		return fmt.Sprintf("✅ Trade between %s and %s completed", e.FromID, e.ToID)
	case events.TradeRejected:
		return fmt.Sprintf("❌ Trade %s fell through (%s)", e.TradeID, e.Status)
	case events.EconomicUpdate:
		return fmt.Sprintf("📈 Economy shifted to **%s** (inflation factor %.2f): %s", e.NewRegime, e.Factor, e.Rationale)
	case events.CommunityFundUpdate:
		return fmt.Sprintf("🏦 Community fund %+d for %s (balance $%d)", e.Delta, e.Reason, e.Balance)
	case events.PlayerBankrupt:
		return fmt.Sprintf("💀 %s is bankrupt", e.PlayerID)
	case events.GameEnded:
		return fmt.Sprintf("🎉 Game over. %s takes the board!", e.WinnerID)
	default:
		return ""
	}
}
