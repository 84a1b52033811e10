package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moonman-labs/toke-machine/pkg/faucet"
	"github.com/moonman-labs/toke-machine/pkg/retry"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/time/rate"
)

type Config struct {
	Logger            *slog.Logger
	API               *slack.Client
	Socket            *socketmode.Client
	Orchestrator      *faucet.Orchestrator
	Sticky            *StickyManager
	FaucetChannelID   string
	AnnounceChannelID string

	// RequestLimiter throttles per-user interaction churn. Optional; a
	// default of 10/minute with burst 3 is applied when nil.
	RequestLimiter *RateLimiter
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.API == nil {
		return errors.New("slack api client is required")
	}
	if cfg.Socket == nil {
		return errors.New("socketmode client is required")
	}
	if cfg.Orchestrator == nil {
		return errors.New("orchestrator is required")
	}
	if cfg.Sticky == nil {
		return errors.New("sticky manager is required")
	}
	if cfg.FaucetChannelID == "" {
		return errors.New("faucet channel is required")
	}
	if cfg.AnnounceChannelID == "" {
		return errors.New("announce channel is required")
	}
	if cfg.RequestLimiter == nil {
		cfg.RequestLimiter = NewRateLimiter(rate.Every(time.Minute/10), 3)
	}
	return nil
}

// Bot consumes Slack socket-mode events and drives the orchestrator.
// Requests are acked immediately and processed concurrently; the
// orchestrator and store enforce per-user mutual exclusion.
type Bot struct {
	log          *slog.Logger
	api          *slack.Client
	socket       *socketmode.Client
	orch         *faucet.Orchestrator
	sticky       *StickyManager
	faucetChanID string
	announceID   string
	limiter      *RateLimiter

	inflight sync.WaitGroup
}

func New(cfg Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bot{
		log:          cfg.Logger,
		api:          cfg.API,
		socket:       cfg.Socket,
		orch:         cfg.Orchestrator,
		sticky:       cfg.Sticky,
		faucetChanID: cfg.FaucetChannelID,
		announceID:   cfg.AnnounceChannelID,
		limiter:      cfg.RequestLimiter,
	}, nil
}

// Run consumes socket-mode events until ctx is done or the event channel
// closes.
func (b *Bot) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-b.socket.Events:
			if !ok {
				return nil
			}
			b.handleEvent(ctx, evt)
		}
	}
}

// WaitInFlight blocks until in-flight dispersals finish or the timeout
// elapses. Returns true when everything completed.
func (b *Bot) WaitInFlight(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.log.Info("connecting to slack")
	case socketmode.EventTypeConnected:
		b.log.Info("connected to slack")
	case socketmode.EventTypeConnectionError:
		b.log.Error("slack connection error", "error", evt.Data)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		b.socket.Ack(*evt.Request)
		if cmd.Command == "/faucet" {
			b.dispatchStart(ctx, cmd.UserID, cmd.TriggerID)
		}

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok || evt.Request == nil {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handleInteraction(ctx, callback)
	}
}

func (b *Bot) handleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	switch callback.Type {
	case slack.InteractionTypeBlockActions:
		for _, action := range callback.ActionCallback.BlockActions {
			if action.ActionID == faucetButtonActionID {
				b.dispatchStart(ctx, callback.User.ID, callback.TriggerID)
				return
			}
		}

	case slack.InteractionTypeViewSubmission:
		if callback.View.CallbackID != walletModalCallbackID {
			return
		}
		address := walletAddressFromView(callback.View)
		userID := callback.User.ID

		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			// Detached so a shutdown signal doesn't abandon a dispersal
			// mid-flight; the orchestrator applies its own deadline.
			b.handleSubmission(context.WithoutCancel(ctx), userID, address)
		}()
	}
}

// dispatchStart runs the precheck off the event loop so slow store or Slack
// calls never stall dispatch of unrelated events.
func (b *Bot) dispatchStart(ctx context.Context, userID, triggerID string) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.handleStart(ctx, userID, triggerID)
	}()
}

// handleStart runs the read-only eligibility precheck and opens the wallet
// form when the user may proceed.
func (b *Bot) handleStart(ctx context.Context, userID, triggerID string) {
	if !b.limiter.Allow(userID) {
		b.log.Warn("faucet request rate limited", "user", userID)
		b.postEphemeral(ctx, userID, msgRateLimited)
		return
	}

	b.log.Info("faucet request started", "user", userID)

	out := b.orch.Dispatch(ctx, faucet.StartRequest{UserID: userID})
	switch out.Kind {
	case faucet.OutcomeAllowed:
		if _, err := b.api.OpenViewContext(ctx, triggerID, walletModal()); err != nil {
			b.log.Error("failed to open wallet modal", "user", userID, "error", err)
			b.postEphemeral(ctx, userID, msgGenericError)
		}
	case faucet.OutcomeDeniedBusy:
		b.postEphemeral(ctx, userID, msgBusy)
	case faucet.OutcomeDeniedCooldown:
		b.postEphemeral(ctx, userID, msgCooldown)
	default:
		b.postEphemeral(ctx, userID, msgGenericError)
	}

	b.refreshSticky(ctx)
}

// handleSubmission runs one dispersal end to end and acknowledges the
// requester. Internal failure detail stays in the logs.
func (b *Bot) handleSubmission(ctx context.Context, userID, address string) {
	log := b.log.With("request_id", uuid.NewString(), "user", userID)
	log.Info("wallet address submitted")

	out := b.orch.Dispatch(ctx, faucet.AddressSubmitted{UserID: userID, Address: address})
	switch out.Kind {
	case faucet.OutcomeSent:
		b.postEphemeral(ctx, userID, msgSuccess)
		b.announce(ctx, out, userID)
	case faucet.OutcomeDeniedAddress:
		b.postEphemeral(ctx, userID, msgInvalidAddress)
	case faucet.OutcomeDeniedBusy:
		b.postEphemeral(ctx, userID, msgBusy)
	case faucet.OutcomeDeniedCooldown:
		b.postEphemeral(ctx, userID, msgCooldown)
	default:
		b.postEphemeral(ctx, userID, msgFailure)
	}

	b.refreshSticky(ctx)
}

func (b *Bot) announce(ctx context.Context, out faucet.Outcome, userID string) {
	text := FormatAnnouncement(out.Sequence, out.Amount, out.Bonus, userID)
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		_, _, err := b.api.PostMessageContext(ctx, b.announceID, slack.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		b.log.Error("failed to post announcement", "user", userID, "error", err)
	}
}

func (b *Bot) postEphemeral(ctx context.Context, userID, text string) {
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		_, err := b.api.PostEphemeralContext(ctx, b.faucetChanID, userID, slack.MsgOptionText(text, false))
		return err
	})
	if err != nil {
		b.log.Warn("failed to post ephemeral reply", "user", userID, "error", err)
	}
}

func (b *Bot) refreshSticky(ctx context.Context) {
	if err := b.sticky.Refresh(ctx); err != nil {
		b.log.Warn("failed to refresh faucet message", "error", err)
	}
}
