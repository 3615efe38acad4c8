package service

import (
	"context"
	"fmt"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"go.uber.org/zap"
)

// Classifier decides whether a raw reaction notification concerns a poll.
type Classifier struct {
	messages MessageStore
	l        *zap.Logger
}

func NewClassifier(messages MessageStore, l *zap.Logger) *Classifier {
	return &Classifier{messages: messages, l: l}
}

// Classify returns the normalized change, or a non-empty FilterReason when the
// notification must be ignored. Only a failed message lookup is an error.
// Emoji and community checks run first and never touch the platform.
func (c *Classifier) Classify(ctx context.Context, raw models.RawReaction, self models.Self) (models.ReactionChange, models.FilterReason, error) {
	if raw.Kind != models.ChangeCleared {
		if raw.CustomEmoji {
			return models.ReactionChange{}, models.FilterCustomEmoji, nil
		}
		if _, ok := models.OptionByEmoji(raw.Emoji); !ok {
			return models.ReactionChange{}, models.FilterUntrackedEmoji, nil
		}
	}
	// a known author lets adapters skip resolving the community
	if raw.AuthorID != "" && raw.AuthorID != self.ID {
		return models.ReactionChange{}, models.FilterForeignMessage, nil
	}
	if raw.GuildID == "" {
		return models.ReactionChange{}, models.FilterNoGuild, nil
	}

	msg := models.Message{
		ID:        raw.MessageID,
		ChannelID: raw.ChannelID,
		GuildID:   raw.GuildID,
		AuthorID:  raw.AuthorID,
	}
	if msg.AuthorID == "" {
		fetched, err := c.messages.Message(ctx, raw.ChannelID, raw.MessageID)
		if err != nil {
			c.l.Debug("failed to fetch reacted message",
				zap.String("message_id", raw.MessageID),
				zap.Error(err))
			return models.ReactionChange{}, models.FilterNone, fmt.Errorf("service: fetch reacted message: %w", err)
		}
		msg.AuthorID = fetched.AuthorID
		msg.Content = fetched.Content
	}
	if msg.AuthorID != self.ID {
		return models.ReactionChange{}, models.FilterForeignMessage, nil
	}

	change := models.ReactionChange{
		Message: msg,
		Kind:    raw.Kind,
		Emoji:   raw.Emoji,
		UserID:  raw.UserID,
	}
	if raw.Kind == models.ChangeAdded {
		change.Actor = raw.UserID
	}
	return change, models.FilterNone, nil
}
