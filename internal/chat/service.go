package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options tune service behavior.
type Options struct {
	// HistoryJoinFloor makes message history respect the requester's
	// join-time visibility floor instead of exposing the full log.
	HistoryJoinFloor bool
}

// Service bundles the messaging core components over one store.
type Service struct {
	Channels *ChannelRegistry
	Agents   *AgentDirectory
	Mentions *MentionResolver
	Messages *MessageLog
	Ledger   *ReadLedger
}

// NewService wires the core components together.
func NewService(store Store, logger zerolog.Logger, opts Options) *Service {
	registry := NewChannelRegistry(store, logger)
	directory := NewAgentDirectory(store, logger)
	resolver := NewMentionResolver(directory)
	return &Service{
		Channels: registry,
		Agents:   directory,
		Mentions: resolver,
		Messages: NewMessageLog(store, directory, resolver, logger, opts.HistoryJoinFloor),
		Ledger:   NewReadLedger(store, directory, logger),
	}
}

const (
	retryAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

// Retry runs fn, retrying a bounded number of times with linear backoff
// while it fails with a transient concurrency conflict. All core
// operations are single transactions, so re-running one after an aborted
// commit cannot duplicate state.
func Retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
