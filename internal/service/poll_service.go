package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// PageLimit is the number of reacting users read per emoji.
	PageLimit int
	// MaxNames caps names per rendered section, 0 lists everyone.
	MaxNames int
	// Spacer is the invisible line placed around the rendered body.
	Spacer string
	// HistoryLimit bounds how many channel messages are scanned for the poll.
	HistoryLimit int
}

// PollService keeps poll messages in sync with their reactions and answers
// read-only queries about them. It holds no per-poll state: every call
// recomputes from the platform.
type PollService struct {
	p            Platform
	self         models.Self
	reader       *ReactionReader
	resolver     *NameResolver
	renderer     *Renderer
	audit        *AuditRouter
	classifier   *Classifier
	historyLimit int
	l            *zap.Logger
}

func New(p Platform, self models.Self, opts Options, l *zap.Logger) (*PollService, error) {
	reader, err := NewReactionReader(p, opts.PageLimit, l)
	if err != nil {
		return nil, err
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 500
	}
	resolver := NewNameResolver(p)
	return &PollService{
		p:            p,
		self:         self,
		reader:       reader,
		resolver:     resolver,
		renderer:     NewRenderer(resolver, opts.Spacer, opts.MaxNames),
		audit:        NewAuditRouter(p, p, l),
		classifier:   NewClassifier(p, l),
		historyLimit: opts.HistoryLimit,
		l:            l,
	}, nil
}

func (s *PollService) Self() models.Self {
	return s.self
}

// HandleReaction filters a raw notification and reconciles the poll when it
// is in scope. A filtered notification returns its reason and no error.
func (s *PollService) HandleReaction(ctx context.Context, raw models.RawReaction) (string, error) {
	change, reason, err := s.classifier.Classify(ctx, raw, s.self)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return "", fmt.Errorf("service: %w: %w", models.ErrReconcile, err)
	}
	if reason != models.FilterNone {
		metrics.Reconciliations.WithLabelValues("filtered").Inc()
		s.l.Debug("reaction filtered",
			zap.String("message_id", raw.MessageID),
			zap.String("emoji", raw.Emoji),
			zap.String("reason", string(reason)))
		return string(reason), nil
	}
	return s.Reconcile(ctx, change)
}

// Reconcile rebuilds the poll body from the live reaction sets. For an added
// reaction, the actor's other tracked reactions are removed first and dropped
// from the sets, so the render already shows a single selection. The audit
// line is posted whether or not the rewrite succeeded.
func (s *PollService) Reconcile(ctx context.Context, change models.ReactionChange) (string, error) {
	start := time.Now()
	msg := change.Message
	l := s.l.With(
		zap.String("trace_id", uuid.New().String()[:8]),
		zap.String("message_id", msg.ID),
		zap.String("kind", change.Kind.String()),
		zap.String("emoji", change.Emoji))
	l.Debug("reconciling poll", zap.String("user_id", change.UserID))

	var renderErr error
	sets, err := s.readAll(ctx, msg)
	if err != nil {
		l.Error("failed to read reaction sets", zap.Error(err))
		renderErr = err
	} else {
		sets = s.resolveConflicts(ctx, l, msg, sets, change)
		body := s.renderer.RenderSets(msg.GuildID, sets, s.self)
		if err = s.p.EditMessage(ctx, msg.ChannelID, msg.ID, body); err != nil {
			l.Error("failed to edit poll message", zap.Error(err))
			renderErr = fmt.Errorf("service: edit poll message: %w", err)
		} else {
			l.Debug("poll message updated",
				zap.Int("accepted", len(sets[models.OptionAccept].Participants)),
				zap.Int("declined", len(sets[models.OptionDecline].Participants)),
				zap.Int("tentative", len(sets[models.OptionTentative].Participants)))
		}
	}

	line := s.describe(ctx, change)
	auditErr := s.audit.Append(ctx, msg.GuildID, msg.ChannelID, msg.ID, line)
	if auditErr != nil {
		l.Warn("failed to append audit line", zap.Error(auditErr))
	}

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err = errors.Join(renderErr, auditErr); err != nil {
		metrics.Reconciliations.WithLabelValues("error").Inc()
		return line, fmt.Errorf("service: %w: %w", models.ErrReconcile, err)
	}
	metrics.Reconciliations.WithLabelValues("ok").Inc()
	l.Info("poll reconciled",
		zap.String("summary", line),
		zap.Duration("elapsed", time.Since(start)))
	return line, nil
}

// readAll reads the three tracked sets concurrently; any failure aborts all.
func (s *PollService) readAll(ctx context.Context, msg models.Message) (models.Selections, error) {
	var sets models.Selections
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range models.Options {
		g.Go(func() error {
			set, err := s.reader.Read(gctx, msg, o, s.self)
			if err != nil {
				return err
			}
			sets[o] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Selections{}, err
	}
	return sets, nil
}

func (s *PollService) resolveConflicts(ctx context.Context, l *zap.Logger, msg models.Message, sets models.Selections, change models.ReactionChange) models.Selections {
	if change.Kind != models.ChangeAdded || change.Actor == "" || change.Actor == s.self.ID {
		return sets
	}
	for _, o := range models.Options {
		if o.Emoji() == change.Emoji || !sets[o].Has(change.Actor) {
			continue
		}
		err := s.p.RemoveReaction(ctx, msg.ChannelID, msg.ID, o.Emoji(), change.Actor)
		metrics.CorrectiveRemovals.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			l.Warn("failed to remove conflicting reaction",
				zap.String("user_id", change.Actor),
				zap.String("removed_emoji", o.Emoji()),
				zap.Error(err))
		} else {
			l.Debug("removed conflicting reaction",
				zap.String("user_id", change.Actor),
				zap.String("removed_emoji", o.Emoji()))
		}
		sets[o] = sets[o].Without(change.Actor)
	}
	return sets
}

// describe builds the audit line, e.g. "Jane (Janie) `<@42>` reacted with ✅".
func (s *PollService) describe(ctx context.Context, change models.ReactionChange) string {
	user := "Someone (no user_id)"
	if change.UserID != "" {
		user = s.userLabel(ctx, change.UserID, change.Message.GuildID)
	}
	switch change.Kind {
	case models.ChangeAdded:
		return fmt.Sprintf("%s reacted with %s", user, change.Emoji)
	case models.ChangeRemoved:
		return fmt.Sprintf("%s removed %s", user, change.Emoji)
	case models.ChangeRemovedEmoji:
		return fmt.Sprintf("%s removed emoji %s", user, change.Emoji)
	case models.ChangeCleared:
		return fmt.Sprintf("%s cleared all reactions", user)
	}
	return fmt.Sprintf("%s did something else with %s", user, change.Emoji)
}

func (s *PollService) userLabel(ctx context.Context, userID, guildID string) string {
	p, err := s.p.User(ctx, userID)
	if err != nil {
		s.l.Debug("failed to resolve user, using id",
			zap.String("user_id", userID),
			zap.Error(err))
		p = models.Participant{ID: userID}
	}
	nick := ""
	if n, ok := s.resolver.Nickname(userID, guildID); ok {
		nick = fmt.Sprintf(" (%s)", EscapeMarkdown(n))
	}
	return fmt.Sprintf("%s%s `%s`", EscapeMarkdown(p.Name()), nick, s.p.Mention(userID))
}
