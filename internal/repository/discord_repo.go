package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"go.uber.org/zap"
)

// threadArchiveMinutes keeps audit threads active for a week of silence.
const threadArchiveMinutes = 10080

// Discord talks to the Discord REST API and reads nicknames, members and
// voice states from the gateway state cache.
type Discord struct {
	s *discordgo.Session
	l *zap.Logger
}

func NewDiscord(s *discordgo.Session, l *zap.Logger) *Discord {
	return &Discord{s: s, l: l}
}

func (r *Discord) ReactionUsers(ctx context.Context, channelID, messageID, emoji string, limit int) ([]models.Participant, error) {
	users, err := r.s.MessageReactions(channelID, messageID, emoji, limit, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, r.fail("read reactions", err)
	}
	r.l.Debug("discord reactions",
		zap.String("message_id", messageID),
		zap.String("emoji", emoji),
		zap.Int("count", len(users)))
	out := make([]models.Participant, 0, len(users))
	for _, u := range users {
		out = append(out, participant(u))
	}
	return out, nil
}

func (r *Discord) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	if err := r.s.MessageReactionRemove(channelID, messageID, emoji, userID, discordgo.WithContext(ctx)); err != nil {
		return r.fail("remove reaction", err)
	}
	return nil
}

func (r *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := r.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return r.fail("add reaction", err)
	}
	return nil
}

// Message serves from the session state cache before asking the API.
func (r *Discord) Message(ctx context.Context, channelID, messageID string) (*models.Message, error) {
	if m, err := r.s.State.Message(channelID, messageID); err == nil {
		return message(m), nil
	}
	m, err := r.s.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, r.fail("get message", err)
	}
	return message(m), nil
}

func (r *Discord) EditMessage(ctx context.Context, channelID, messageID, body string) error {
	if _, err := r.s.ChannelMessageEdit(channelID, messageID, body, discordgo.WithContext(ctx)); err != nil {
		return r.fail("edit message", err)
	}
	return nil
}

func (r *Discord) SendMessage(ctx context.Context, channelID, text string) (*models.Message, error) {
	m, err := r.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return nil, r.fail("send message", err)
	}
	return message(m), nil
}

func (r *Discord) RecentMessages(ctx context.Context, channelID, beforeID string, limit int) ([]*models.Message, error) {
	msgs, err := r.s.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, r.fail("list messages", err)
	}
	out := make([]*models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, message(m))
	}
	return out, nil
}

func (r *Discord) ActiveThreads(ctx context.Context, guildID, _ string) ([]models.Thread, error) {
	list, err := r.s.GuildThreadsActive(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, r.fail("list active threads", err)
	}
	out := make([]models.Thread, 0, len(list.Threads))
	for _, t := range list.Threads {
		out = append(out, models.Thread{ID: t.ID, ParentID: t.ParentID, Name: t.Name})
	}
	return out, nil
}

func (r *Discord) CreateThread(ctx context.Context, channelID, name string) (models.Thread, error) {
	ch, err := r.s.ThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadArchiveMinutes,
		Type:                discordgo.ChannelTypeGuildPrivateThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return models.Thread{}, r.fail("create thread", err)
	}
	return models.Thread{ID: ch.ID, ParentID: channelID, Name: ch.Name}, nil
}

func (r *Discord) User(ctx context.Context, userID string) (models.Participant, error) {
	u, err := r.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return models.Participant{}, r.fail("get user", err)
	}
	return participant(u), nil
}

func (r *Discord) Channel(ctx context.Context, channelID string) (*models.Channel, error) {
	ch, err := r.s.State.Channel(channelID)
	if err != nil {
		r.l.Debug("channel not cached, asking api", zap.String("channel_id", channelID))
		if ch, err = r.s.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return nil, r.fail("get channel", err)
		}
	}
	out := &models.Channel{ID: ch.ID, GuildID: ch.GuildID, ParentID: ch.ParentID}
	switch ch.Type {
	case discordgo.ChannelTypeGuildText:
		out.Kind = models.ChannelText
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread:
		out.Kind = models.ChannelThread
	}
	return out, nil
}

// ChannelMembers lists cached guild members who can view the channel.
func (r *Discord) ChannelMembers(_ context.Context, guildID, channelID string) ([]models.Participant, error) {
	g, err := r.s.State.Guild(guildID)
	if err != nil {
		r.l.Debug("guild not cached", zap.String("guild_id", guildID))
		return nil, fmt.Errorf("repository: guild %s: %w", guildID, models.ErrNotFound)
	}
	out := make([]models.Participant, 0, len(g.Members))
	for _, m := range g.Members {
		if m.User == nil {
			continue
		}
		perms, err := r.s.State.UserChannelPermissions(m.User.ID, channelID)
		if err != nil || perms&discordgo.PermissionViewChannel == 0 {
			continue
		}
		out = append(out, participant(m.User))
	}
	return out, nil
}

func (r *Discord) VoiceMembers(_ context.Context, guildID string) (map[string]struct{}, error) {
	g, err := r.s.State.Guild(guildID)
	if err != nil {
		r.l.Debug("can't get guild from cache", zap.String("guild_id", guildID))
		return nil, fmt.Errorf("repository: guild %s: %w", guildID, models.ErrNotFound)
	}
	out := make(map[string]struct{}, len(g.VoiceStates))
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != "" {
			out[vs.UserID] = struct{}{}
		}
	}
	return out, nil
}

func (r *Discord) Mention(userID string) string {
	return "<@" + userID + ">"
}

func (r *Discord) Nickname(guildID, userID string) (string, bool) {
	m, err := r.s.State.Member(guildID, userID)
	if err != nil || m.Nick == "" {
		return "", false
	}
	return m.Nick, true
}

// HasCommonRole reports whether the member shares at least one role with the bot.
func (r *Discord) HasCommonRole(guildID string, roles []string) bool {
	if r.s.State.User == nil {
		return false
	}
	own, err := r.s.State.Member(guildID, r.s.State.User.ID)
	if err != nil {
		if own, err = r.s.GuildMember(guildID, r.s.State.User.ID); err != nil {
			r.l.Warn("failed to fetch own member", zap.String("guild_id", guildID), zap.Error(err))
			return false
		}
	}
	for _, role := range roles {
		for _, ownRole := range own.Roles {
			if role == ownRole {
				return true
			}
		}
	}
	return false
}

func (r *Discord) fail(op string, err error) error {
	r.l.Debug("discord request failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("repository: %s: %w: %w", op, models.ErrTransport, err)
}

func participant(u *discordgo.User) models.Participant {
	return models.Participant{ID: u.ID, Username: u.Username, DisplayName: u.GlobalName}
}

func message(m *discordgo.Message) *models.Message {
	out := &models.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Auxiliary: m.Type != discordgo.MessageTypeDefault,
	}
	if m.Author != nil {
		out.AuthorID = m.Author.ID
	}
	return out
}
