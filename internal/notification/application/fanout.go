package application

import (
	"context"
	"log/slog"

	"github.com/pharmaflow/reservation-service/internal/notification/domain"
)

// Channel outcomes. Every channel attempt resolves to exactly one of these;
// nothing a channel does can fail the caller.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

type ChannelResult struct {
	Channel string
	Outcome Outcome
	Reason  string
	Err     error
}

// Message is one recipient-bound notification. Channel/Event drive the
// realtime publish; an empty Event means the message has no realtime leg.
type Message struct {
	RecipientID int64
	Title       string
	Body        string
	Category    domain.Category
	Data        map[string]any

	Channel         string
	Event           string
	RealtimePayload any
}

type InboxStore interface {
	Insert(ctx context.Context, userID int64, title, body string, category domain.Category, data map[string]any) error
}

type RealtimePublisher interface {
	Publish(ctx context.Context, channel, event string, payload any) error
}

type PushSender interface {
	Send(ctx context.Context, deviceToken, title, body string) error
}

type TokenDirectory interface {
	DeviceToken(ctx context.Context, userID int64) (string, error)
}

// Fanout dispatches one logical event across the inbox, realtime and push
// channels. The inbox insert is the record of truth and is attempted first;
// the three channels are independent and all best-effort.
type Fanout struct {
	log      *slog.Logger
	inbox    InboxStore
	realtime RealtimePublisher
	push     PushSender
	tokens   TokenDirectory
}

func NewFanout(log *slog.Logger, inbox InboxStore, realtime RealtimePublisher, push PushSender, tokens TokenDirectory) *Fanout {
	return &Fanout{log: log, inbox: inbox, realtime: realtime, push: push, tokens: tokens}
}

func (f *Fanout) Send(ctx context.Context, msg Message) []ChannelResult {
	results := []ChannelResult{
		f.sendInbox(ctx, msg),
		f.sendRealtime(ctx, msg),
		f.sendPush(ctx, msg),
	}
	for _, r := range results {
		f.logResult(msg.RecipientID, r)
	}
	return results
}

// Publish is the realtime-only leg used for pharmacy-scoped broadcasts that
// have no single recipient.
func (f *Fanout) Publish(ctx context.Context, channel, event string, payload any) ChannelResult {
	r := ChannelResult{Channel: "realtime"}
	if err := f.realtime.Publish(ctx, channel, event, payload); err != nil {
		r.Outcome = Failed
		r.Err = err
	} else {
		r.Outcome = Delivered
	}
	f.logResult(0, r)
	return r
}

func (f *Fanout) sendInbox(ctx context.Context, msg Message) ChannelResult {
	r := ChannelResult{Channel: "inbox"}
	if err := f.inbox.Insert(ctx, msg.RecipientID, msg.Title, msg.Body, msg.Category, msg.Data); err != nil {
		r.Outcome = Failed
		r.Err = err
		return r
	}
	r.Outcome = Delivered
	return r
}

func (f *Fanout) sendRealtime(ctx context.Context, msg Message) ChannelResult {
	r := ChannelResult{Channel: "realtime"}
	if msg.Event == "" {
		r.Outcome = Skipped
		r.Reason = "no realtime event for this message"
		return r
	}
	payload := msg.RealtimePayload
	if payload == nil {
		payload = map[string]any{
			"title":    msg.Title,
			"message":  msg.Body,
			"category": msg.Category,
			"data":     msg.Data,
		}
	}
	if err := f.realtime.Publish(ctx, msg.Channel, msg.Event, payload); err != nil {
		r.Outcome = Failed
		r.Err = err
		return r
	}
	r.Outcome = Delivered
	return r
}

func (f *Fanout) sendPush(ctx context.Context, msg Message) ChannelResult {
	r := ChannelResult{Channel: "push"}
	if f.push == nil {
		r.Outcome = Skipped
		r.Reason = "push gateway not configured"
		return r
	}
	token, err := f.tokens.DeviceToken(ctx, msg.RecipientID)
	if err != nil {
		r.Outcome = Failed
		r.Err = err
		return r
	}
	if token == "" {
		r.Outcome = Skipped
		r.Reason = "no device token"
		return r
	}
	if err := f.push.Send(ctx, token, msg.Title, msg.Body); err != nil {
		r.Outcome = Failed
		r.Err = err
		return r
	}
	r.Outcome = Delivered
	return r
}

func (f *Fanout) logResult(recipient int64, r ChannelResult) {
	switch r.Outcome {
	case Failed:
		f.log.Error("notification channel failed", "channel", r.Channel, "recipient", recipient, "err", r.Err)
	case Skipped:
		f.log.Info("notification channel skipped", "channel", r.Channel, "recipient", recipient, "reason", r.Reason)
	default:
		f.log.Info("notification delivered", "channel", r.Channel, "recipient", recipient)
	}
}
