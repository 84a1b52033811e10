package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/moonman-labs/toke-machine/pkg/retry"
	"github.com/slack-go/slack"
)

// StickyManager keeps the faucet button message at the bottom of the
// faucet channel and carries the latest published per-hit amount on it. It
// doubles as the status publisher's sink.
type StickyManager struct {
	log       *slog.Logger
	api       *slack.Client
	channelID string
	botUserID string

	mu         sync.Mutex
	statusLine string
}

func NewStickyManager(log *slog.Logger, api *slack.Client, channelID, botUserID string) *StickyManager {
	return &StickyManager{
		log:       log,
		api:       api,
		channelID: channelID,
		botUserID: botUserID,
	}
}

// PublishStatus records the recomputed per-hit amount and refreshes the
// sticky message so the new status line is visible.
func (m *StickyManager) PublishStatus(ctx context.Context, amount float64) error {
	m.mu.Lock()
	m.statusLine = FormatStatus(amount)
	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh deletes the previous bot button message and reposts it, keeping
// the button as the channel's latest message.
func (m *StickyManager) Refresh(ctx context.Context) error {
	if err := m.deletePrevious(ctx); err != nil {
		// Posting still proceeds; a stale duplicate is better than no button.
		m.log.Warn("failed to delete previous faucet message", "error", err)
	}

	m.mu.Lock()
	statusLine := m.statusLine
	m.mu.Unlock()

	blocks := faucetMessageBlocks(statusLine)
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		_, _, err := m.api.PostMessageContext(ctx, m.channelID, slack.MsgOptionBlocks(blocks...))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to post faucet message: %w", err)
	}
	return nil
}

func (m *StickyManager) deletePrevious(ctx context.Context) error {
	var history *slack.GetConversationHistoryResponse
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var err error
		history, err = m.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: m.channelID,
			Limit:     10,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to fetch channel history: %w", err)
	}

	for _, msg := range history.Messages {
		if !m.isOwnButtonMessage(msg) {
			continue
		}
		if _, _, err := m.api.DeleteMessageContext(ctx, m.channelID, msg.Timestamp); err != nil {
			return fmt.Errorf("failed to delete message %s: %w", msg.Timestamp, err)
		}
	}
	return nil
}

func (m *StickyManager) isOwnButtonMessage(msg slack.Message) bool {
	if msg.User != m.botUserID && msg.BotID == "" {
		return false
	}
	return len(msg.Blocks.BlockSet) > 1
}
