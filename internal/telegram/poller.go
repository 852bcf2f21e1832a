package telegram

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UpdateHandler consumes one update. Implementations must be safe for concurrent use.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update Update)
}

type Poller struct {
	client     *Client
	handler    UpdateHandler
	timeout    time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewPoller(client *Client, handler UpdateHandler, timeout time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		client:     client,
		handler:    handler,
		timeout:    timeout,
		retryDelay: 3 * time.Second,
		logger:     logger.Named("poller"),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers. Updates of one account
// are handled in the order getUpdates returned them.
func (p *Poller) Run(ctx context.Context) {
	dispatcher := NewDispatcher(ctx, p.handler, p.logger)
	defer dispatcher.Close()

	var offset int64
	p.logger.Info("Long polling started", zap.Duration("timeout", p.timeout))
	for {
		updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Long polling stopped")
				return
			}
			p.logger.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			dispatcher.Dispatch(u)
		}
	}
}
