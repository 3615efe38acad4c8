package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(60, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "buckets are per user")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
}

func TestLimiter_DropsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(60, 1)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("u1"))
	now = now.Add(2 * limiterTTL)
	require.True(t, l.Allow("u2"))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.m, "u1")
	assert.Contains(t, l.m, "u2")
}

func TestCommands_Run(t *testing.T) {
	c := NewCommands(nil, NewLimiter(60, 1), zaptest.NewLogger(t))
	inv := Invocation{Command: "dance", GuildID: "g", ChannelID: "c", UserID: "u1"}

	assert.Equal(t, MsgNotImplemented, c.Run(context.Background(), inv))
	assert.Equal(t, MsgSlowDown, c.Run(context.Background(), inv))
}

func TestApplicationCommands(t *testing.T) {
	cmds := applicationCommands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		assert.NotEmpty(t, c.Description)
		assert.LessOrEqual(t, len([]rune(c.Description)), 100)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{CmdNewPoll, CmdGetAccepted, CmdGetTentative, CmdGetNotVoted, CmdGetNotInVoice}, names)
}

func TestReactionEvent(t *testing.T) {
	raw := reactionEvent(models.ChangeAdded, &discordgo.MessageReaction{
		UserID:    "u1",
		MessageID: "m",
		ChannelID: "c",
		GuildID:   "g",
		Emoji:     discordgo.Emoji{Name: models.EmojiAccept},
	})
	assert.Equal(t, models.RawReaction{
		Kind:      models.ChangeAdded,
		GuildID:   "g",
		ChannelID: "c",
		MessageID: "m",
		UserID:    "u1",
		Emoji:     models.EmojiAccept,
	}, raw)

	custom := reactionEvent(models.ChangeRemoved, &discordgo.MessageReaction{
		Emoji: discordgo.Emoji{ID: "123", Name: "party"},
	})
	assert.True(t, custom.CustomEmoji)
}

func TestDecodeMattermostPayloads(t *testing.T) {
	reaction, err := json.Marshal(&model.Reaction{UserId: "u1", PostId: "p", EmojiName: "x"})
	require.NoError(t, err)
	event := model.NewWebSocketEvent(model.WebsocketEventReactionAdded, "", "c", "", nil)
	event.Add("reaction", string(reaction))

	got, err := decodeReaction(event)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserId)
	assert.Equal(t, "p", got.PostId)
	assert.Equal(t, "x", got.EmojiName)

	_, err = decodePost(event)
	assert.ErrorIs(t, err, errNoPayload)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdefgh", 4))
	assert.Equal(t, "✅✅…", truncate("✅✅✅✅", 3))
}
