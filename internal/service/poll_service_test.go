package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T, p *fakePlatform) *PollService {
	t.Helper()
	s, err := New(p, self, Options{PageLimit: 100}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func added(userID, emoji string) models.RawReaction {
	return models.RawReaction{
		Kind:      models.ChangeAdded,
		GuildID:   guildID,
		ChannelID: chanID,
		MessageID: pollID,
		UserID:    userID,
		Emoji:     emoji,
		AuthorID:  botID,
	}
}

func TestHandleReaction_SwitchingSelection(t *testing.T) {
	p := newFakePlatform()
	p.addUser(alice, "Ali")
	p.addUser(bob, "")
	for _, o := range models.Options {
		p.react(pollID, o.Emoji(), models.Participant{ID: botID})
	}
	s := newTestService(t, p)
	ctx := context.Background()

	p.react(pollID, models.EmojiAccept, alice)
	_, err := s.HandleReaction(ctx, added(alice.ID, models.EmojiAccept))
	require.NoError(t, err)
	assert.Contains(t, p.lastEdit().Body, "✅ **__Accepted__ (1):**\nAli\n")

	p.react(pollID, models.EmojiDecline, bob)
	_, err = s.HandleReaction(ctx, added(bob.ID, models.EmojiDecline))
	require.NoError(t, err)
	assert.Empty(t, p.removals)

	p.react(pollID, models.EmojiTentative, alice)
	summary, err := s.HandleReaction(ctx, added(alice.ID, models.EmojiTentative))
	require.NoError(t, err)
	assert.Equal(t, "alice (Ali) `<@u1>` reacted with ❔", summary)

	require.Equal(t, []removal{{MessageID: pollID, Emoji: models.EmojiAccept, UserID: alice.ID}}, p.removals)
	assert.Equal(t, []string{botID}, p.holders(pollID, models.EmojiAccept))
	assert.Equal(t,
		"_ _\n"+
			"✅ **__Accepted__:**\n\n"+
			"❌ **__Declined__ (1):**\nbob\n\n"+
			"❔ **__Tentative__ (1):**\nAli\n\n"+
			"_ _",
		p.lastEdit().Body)
}

func TestHandleReaction_RemovesEveryConflict(t *testing.T) {
	p := newFakePlatform()
	p.react(pollID, models.EmojiAccept, alice)
	p.react(pollID, models.EmojiDecline, alice)
	p.react(pollID, models.EmojiTentative, alice)
	s := newTestService(t, p)

	_, err := s.HandleReaction(context.Background(), added(alice.ID, models.EmojiTentative))
	require.NoError(t, err)

	assert.ElementsMatch(t, []removal{
		{MessageID: pollID, Emoji: models.EmojiAccept, UserID: alice.ID},
		{MessageID: pollID, Emoji: models.EmojiDecline, UserID: alice.ID},
	}, p.removals)
	body := p.lastEdit().Body
	assert.Contains(t, body, "✅ **__Accepted__:**\n\n")
	assert.Contains(t, body, "❌ **__Declined__:**\n\n")
	assert.Contains(t, body, "❔ **__Tentative__ (1):**\nalice\n")
}

func TestHandleReaction_FailedRemovalKeepsGoing(t *testing.T) {
	p := newFakePlatform()
	p.react(pollID, models.EmojiAccept, alice)
	p.react(pollID, models.EmojiDecline, alice)
	p.react(pollID, models.EmojiTentative, alice)
	p.removeErr[models.EmojiAccept] = errors.New("missing permissions")
	s := newTestService(t, p)

	summary, err := s.HandleReaction(context.Background(), added(alice.ID, models.EmojiTentative))
	require.NoError(t, err)
	assert.Equal(t, "u1 `<@u1>` reacted with ❔", summary)

	assert.ElementsMatch(t, []removal{
		{MessageID: pollID, Emoji: models.EmojiAccept, UserID: alice.ID},
		{MessageID: pollID, Emoji: models.EmojiDecline, UserID: alice.ID},
	}, p.removals)
	assert.Equal(t, []string{alice.ID}, p.holders(pollID, models.EmojiAccept))
	assert.Empty(t, p.holders(pollID, models.EmojiDecline))

	body := p.lastEdit().Body
	assert.Contains(t, body, "✅ **__Accepted__:**\n\n")
	assert.Contains(t, body, "❌ **__Declined__:**\n\n")
	assert.Contains(t, body, "❔ **__Tentative__ (1):**\nalice\n")
}

func TestHandleReaction_NoCorrectionOnRemoval(t *testing.T) {
	p := newFakePlatform()
	p.react(pollID, models.EmojiAccept, alice)
	p.react(pollID, models.EmojiDecline, alice)
	s := newTestService(t, p)

	raw := added(alice.ID, models.EmojiTentative)
	raw.Kind = models.ChangeRemoved
	summary, err := s.HandleReaction(context.Background(), raw)
	require.NoError(t, err)

	assert.Empty(t, p.removals)
	assert.Equal(t, "u1 `<@u1>` removed ❔", summary)
	assert.Contains(t, p.lastEdit().Body, "✅ **__Accepted__ (1):**\nalice\n")
}

func TestHandleReaction_BotActorIsNotCorrected(t *testing.T) {
	p := newFakePlatform()
	p.react(pollID, models.EmojiAccept, models.Participant{ID: botID})
	p.react(pollID, models.EmojiDecline, models.Participant{ID: botID})
	s := newTestService(t, p)

	_, err := s.HandleReaction(context.Background(), added(botID, models.EmojiDecline))
	require.NoError(t, err)
	assert.Empty(t, p.removals)
}

func TestHandleReaction_Filtered(t *testing.T) {
	tests := []struct {
		name   string
		raw    models.RawReaction
		reason models.FilterReason
	}{
		{
			name:   "untracked emoji",
			raw:    added(alice.ID, "👍"),
			reason: models.FilterUntrackedEmoji,
		},
		{
			name: "custom emoji",
			raw: func() models.RawReaction {
				r := added(alice.ID, "party")
				r.CustomEmoji = true
				return r
			}(),
			reason: models.FilterCustomEmoji,
		},
		{
			name: "no guild",
			raw: func() models.RawReaction {
				r := added(alice.ID, models.EmojiAccept)
				r.GuildID = ""
				return r
			}(),
			reason: models.FilterNoGuild,
		},
		{
			name: "foreign message",
			raw: func() models.RawReaction {
				r := added(alice.ID, models.EmojiAccept)
				r.AuthorID = "someone"
				return r
			}(),
			reason: models.FilterForeignMessage,
		},
		{
			name: "foreign message without guild",
			raw: func() models.RawReaction {
				r := added(alice.ID, models.EmojiAccept)
				r.AuthorID = "someone"
				r.GuildID = ""
				return r
			}(),
			reason: models.FilterForeignMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			s := newTestService(t, p)

			summary, err := s.HandleReaction(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, string(tt.reason), summary)
			assert.Zero(t, p.outbound())
		})
	}
}

func TestHandleReaction_FetchesUnknownAuthor(t *testing.T) {
	p := newFakePlatform()
	p.post(chanID, &models.Message{ID: pollID, ChannelID: chanID, AuthorID: "someone"})
	s := newTestService(t, p)

	raw := added(alice.ID, models.EmojiAccept)
	raw.AuthorID = ""
	summary, err := s.HandleReaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, string(models.FilterForeignMessage), summary)
	assert.Equal(t, 1, p.outbound())
}

func TestHandleReaction_MissingMessage(t *testing.T) {
	p := newFakePlatform()
	s := newTestService(t, p)

	raw := added(alice.ID, models.EmojiAccept)
	raw.AuthorID = ""
	_, err := s.HandleReaction(context.Background(), raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrReconcile)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandleReaction_ClearedSkipsEmojiChecks(t *testing.T) {
	p := newFakePlatform()
	s := newTestService(t, p)

	raw := added("", "")
	raw.Kind = models.ChangeCleared
	summary, err := s.HandleReaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Someone (no user_id) cleared all reactions", summary)
	assert.Contains(t, p.lastEdit().Body, "✅ **__Accepted__:**\n")
}

func TestReconcile_AuditsWhenReadFails(t *testing.T) {
	p := newFakePlatform()
	p.reactErr = errors.New("gateway timeout")
	s := newTestService(t, p)

	change := models.ReactionChange{
		Message: *pollMessage,
		Kind:    models.ChangeAdded,
		Emoji:   models.EmojiAccept,
		Actor:   alice.ID,
		UserID:  alice.ID,
	}
	_, err := s.Reconcile(context.Background(), change)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrReconcile)
	assert.Empty(t, p.edits)

	require.Len(t, p.created, 1)
	assert.Equal(t, []string{NewThreadNotice, "u1 `<@u1>` reacted with ✅"}, p.sentTo(p.created[0].ID))
}

func TestReconcile_AuditsWhenEditFails(t *testing.T) {
	p := newFakePlatform()
	p.react(pollID, models.EmojiAccept, alice)
	cause := errors.New("message too old")
	p.editErr = cause
	s := newTestService(t, p)

	summary, err := s.HandleReaction(context.Background(), added(alice.ID, models.EmojiAccept))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrReconcile)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "u1 `<@u1>` reacted with ✅", summary)
	assert.Empty(t, p.edits)

	require.Len(t, p.created, 1)
	assert.Equal(t, []string{NewThreadNotice, summary}, p.sentTo(p.created[0].ID))
}

func TestReconcile_EmptyPoll(t *testing.T) {
	p := newFakePlatform()
	s := newTestService(t, p)

	change := models.ReactionChange{Message: *pollMessage, Kind: models.ChangeRemovedEmoji, Emoji: models.EmojiDecline}
	summary, err := s.Reconcile(context.Background(), change)
	require.NoError(t, err)
	assert.Equal(t, "Someone (no user_id) removed emoji ❌", summary)
	assert.Equal(t,
		"_ _\n✅ **__Accepted__:**\n\n❌ **__Declined__:**\n\n❔ **__Tentative__:**\n\n_ _",
		p.lastEdit().Body)
}

func TestNew_InvalidPageLimit(t *testing.T) {
	_, err := New(newFakePlatform(), self, Options{PageLimit: 0}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, models.ErrInvalidPageLimit)
}
