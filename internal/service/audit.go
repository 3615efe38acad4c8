package service

import (
	"context"
	"fmt"

	"github.com/jaam8/reaction_poll_bot/pkg/metrics"
	"go.uber.org/zap"
)

const NewThreadNotice = "Can't find an existing log thread, created a new one."

// AuditThreadName is the name given to a freshly created audit thread.
func AuditThreadName(pollMessageID string) string {
	return "log-" + pollMessageID
}

// AuditRouter appends log lines to the companion thread of a poll channel.
//
// Lookup and creation are not atomic: two concurrent appends that both see no
// thread will each create one. Nothing merges duplicates afterwards.
type AuditRouter struct {
	threads  ThreadStore
	messages MessageStore
	l        *zap.Logger
}

func NewAuditRouter(threads ThreadStore, messages MessageStore, l *zap.Logger) *AuditRouter {
	return &AuditRouter{threads: threads, messages: messages, l: l}
}

func (a *AuditRouter) Append(ctx context.Context, guildID, channelID, pollMessageID, text string) error {
	threadID, err := a.resolveThread(ctx, guildID, channelID, pollMessageID)
	if err != nil {
		metrics.AuditPosts.WithLabelValues("error").Inc()
		return err
	}
	if _, err = a.messages.SendMessage(ctx, threadID, text); err != nil {
		a.l.Error("failed to post audit line",
			zap.String("thread_id", threadID),
			zap.Error(err))
		metrics.AuditPosts.WithLabelValues("error").Inc()
		return fmt.Errorf("service: post audit line: %w", err)
	}
	metrics.AuditPosts.WithLabelValues("ok").Inc()
	a.l.Debug("audit line posted",
		zap.String("thread_id", threadID),
		zap.String("text", text))
	return nil
}

func (a *AuditRouter) resolveThread(ctx context.Context, guildID, channelID, pollMessageID string) (string, error) {
	threads, err := a.threads.ActiveThreads(ctx, guildID, channelID)
	if err != nil {
		a.l.Error("failed to list active threads",
			zap.String("guild_id", guildID),
			zap.Error(err))
		return "", fmt.Errorf("service: list active threads: %w", err)
	}
	a.l.Debug("found active threads", zap.Int("count", len(threads)))
	for _, t := range threads {
		if t.ParentID == channelID {
			return t.ID, nil
		}
	}

	thread, err := a.threads.CreateThread(ctx, channelID, AuditThreadName(pollMessageID))
	if err != nil {
		a.l.Error("failed to create audit thread",
			zap.String("channel_id", channelID),
			zap.Error(err))
		return "", fmt.Errorf("service: create audit thread: %w", err)
	}
	metrics.AuditThreadsCreated.Inc()
	a.l.Info("created audit thread",
		zap.String("channel_id", channelID),
		zap.String("thread_id", thread.ID),
		zap.String("name", thread.Name))
	if _, err = a.messages.SendMessage(ctx, thread.ID, NewThreadNotice); err != nil {
		return "", fmt.Errorf("service: post thread notice: %w", err)
	}
	return thread.ID, nil
}
