package service

import (
	"context"
	"fmt"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/pkg/metrics"
	"go.uber.org/zap"
)

// ReactionReader reads one page of reacting users per tracked emoji.
type ReactionReader struct {
	store ReactionStore
	limit int
	l     *zap.Logger
}

func NewReactionReader(store ReactionStore, limit int, l *zap.Logger) (*ReactionReader, error) {
	if limit < 1 || limit > models.MaxPageLimit {
		return nil, fmt.Errorf("service: reaction reader: %w", models.ErrInvalidPageLimit)
	}
	return &ReactionReader{store: store, limit: limit, l: l}, nil
}

func (r *ReactionReader) Limit() int {
	return r.limit
}

// Read returns the participants holding option on msg, bot excluded. An
// emoji nobody reacted with yields an empty set.
func (r *ReactionReader) Read(ctx context.Context, msg models.Message, option models.Option, self models.Self) (models.ReactionSet, error) {
	users, err := r.store.ReactionUsers(ctx, msg.ChannelID, msg.ID, option.Emoji(), r.limit)
	if err != nil {
		r.l.Debug("failed to read reactions",
			zap.String("message_id", msg.ID),
			zap.String("emoji", option.Emoji()),
			zap.Error(err))
		return models.ReactionSet{}, fmt.Errorf("service: read %s reactions: %w", option, err)
	}
	set := models.ReactionSet{
		Option:       option,
		Participants: make([]models.Participant, 0, len(users)),
		Capped:       len(users) >= r.limit,
	}
	for _, u := range users {
		if u.ID == self.ID {
			continue
		}
		set.Participants = append(set.Participants, u)
	}
	if set.Capped {
		metrics.CappedReads.Inc()
		r.l.Warn("reaction page is full, later participants are not tracked",
			zap.String("message_id", msg.ID),
			zap.String("emoji", option.Emoji()),
			zap.Int("limit", r.limit))
	}
	return set, nil
}
