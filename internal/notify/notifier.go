package notify

import (
	"bytes"
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// Messenger is the outbound half of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) error
	SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) error
	CopyMessage(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error
}

// Recipient is one message of a batch.
type Recipient struct {
	ChatID int64
	Text   string
	Markup any
}

// Notifier delivers best-effort messages. Every call reports its outcome; callers decide
// whether a failed delivery matters.
type Notifier struct {
	messenger Messenger
	logger    *zap.Logger
}

func NewNotifier(messenger Messenger, logger *zap.Logger) *Notifier {
	return &Notifier{
		messenger: messenger,
		logger:    logger.Named("notify"),
	}
}

func (n *Notifier) Notify(ctx context.Context, chatID int64, text string, markup any) error {
	err := n.messenger.SendMessage(ctx, chatID, text, markup)
	if err != nil {
		n.logger.Debug("Delivery failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return err
}

// Copy re-sends a message (text, voice, photo or video) to chatID with caption.
func (n *Notifier) Copy(ctx context.Context, chatID, fromChatID, messageID int64, caption string) error {
	err := n.messenger.CopyMessage(ctx, chatID, fromChatID, messageID, caption)
	if err != nil {
		n.logger.Debug("Copy failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return err
}

func (n *Notifier) SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	err := n.messenger.SendDocument(ctx, chatID, fileName, bytes.NewReader(data), caption)
	if err != nil {
		n.logger.Warn("Document delivery failed", zap.Int64("chat_id", chatID), zap.String("file", fileName), zap.Error(err))
	}
	return err
}

// NotifyEach sends the batch serially, pausing delay between sends, and returns how many
// were delivered. It stops early when ctx is done.
func (n *Notifier) NotifyEach(ctx context.Context, recipients []Recipient, delay time.Duration) int {
	delivered := 0
	for i, r := range recipients {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return delivered
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			return delivered
		}
		if err := n.Notify(ctx, r.ChatID, r.Text, r.Markup); err == nil {
			delivered++
		}
	}
	n.logger.Info("Batch delivered", zap.Int("recipients", len(recipients)), zap.Int("delivered", delivered))
	return delivered
}

// CopyEach copies one message to every chat, pausing delay between sends, and returns how many
// copies were delivered.
func (n *Notifier) CopyEach(ctx context.Context, chatIDs []int64, fromChatID, messageID int64, delay time.Duration) int {
	delivered := 0
	for i, id := range chatIDs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return delivered
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			return delivered
		}
		if err := n.Copy(ctx, id, fromChatID, messageID, ""); err == nil {
			delivered++
		}
	}
	n.logger.Info("Broadcast delivered", zap.Int("recipients", len(chatIDs)), zap.Int("delivered", delivered))
	return delivered
}
