package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"go.uber.org/zap"
)

const (
	MsgPollNotFound     = "Unable to find the poll."
	MsgNoMembers        = "Unable to find any members."
	MsgNoCachedMembers  = "No cached members found in the channel."
	MsgNotGuildChannel  = "Tried to create a poll not in a guild channel. Aborted."
	MsgNotTextChannel   = "Tried to create a poll in a channel which is not a text channel. Aborted."
	MsgPollCreated      = "Successfully created a poll."
	MsgCreatingPoll     = "Creating new poll..."
	MsgVoiceUnsupported = "Voice presence is not available on this platform."
)

const historyPage = 100

// NewPoll posts a poll message in channelID and seeds the three reactions.
func (s *PollService) NewPoll(ctx context.Context, guildID, channelID, invokerID string) (string, error) {
	if guildID == "" {
		return MsgNotGuildChannel, nil
	}
	ch, err := s.p.Channel(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("service: get channel: %w", err)
	}
	if ch.Kind != models.ChannelText {
		return MsgNotTextChannel, nil
	}

	msg, err := s.p.SendMessage(ctx, channelID, MsgCreatingPoll)
	if err != nil {
		s.l.Error("failed to post poll message", zap.String("channel_id", channelID), zap.Error(err))
		return "", fmt.Errorf("service: post poll message: %w", err)
	}
	line := fmt.Sprintf("%s created a poll.", s.p.Mention(invokerID))
	if err = s.audit.Append(ctx, guildID, channelID, msg.ID, line); err != nil {
		s.l.Warn("failed to log poll creation", zap.String("message_id", msg.ID), zap.Error(err))
	}
	for _, o := range models.Options {
		if err = s.p.AddReaction(ctx, channelID, msg.ID, o.Emoji()); err != nil {
			s.l.Error("failed to seed reaction",
				zap.String("message_id", msg.ID),
				zap.String("emoji", o.Emoji()),
				zap.Error(err))
			return "", fmt.Errorf("service: seed %s reaction: %w", o, err)
		}
	}
	s.l.Info("successfully created poll",
		zap.String("message_id", msg.ID),
		zap.String("channel_id", channelID),
		zap.String("user_id", invokerID))
	return MsgPollCreated, nil
}

// ListVoters lists everyone who selected option on the channel's poll.
func (s *PollService) ListVoters(ctx context.Context, guildID, channelID, invokerID string, option models.Option) (string, error) {
	pollChannel, msg, reply, err := s.findPoll(ctx, channelID)
	if msg == nil {
		return reply, err
	}
	set, err := s.reader.Read(ctx, *msg, option, s.self)
	if err != nil {
		return "", err
	}

	var l listing
	for _, p := range set.Participants {
		l.add(s.resolver.Resolve(p, guildID), s.p.Mention(p.ID))
	}
	emoji := option.Emoji()
	s.logQuery(ctx, guildID, pollChannel, msg.ID,
		fmt.Sprintf("%s requested the list of all members who voted \"%s\" (%d):\n%s",
			s.p.Mention(invokerID), emoji, l.count, l.block()))

	if l.count > 0 {
		return fmt.Sprintf("The following members selected \"%s\" (%d):\n%s", emoji, l.count, l.block()), nil
	}
	return fmt.Sprintf("Nobody selected \"%s\".", emoji), nil
}

// ListNotVoted lists channel members holding none of the tracked reactions.
func (s *PollService) ListNotVoted(ctx context.Context, guildID, channelID, invokerID string) (string, error) {
	pollChannel, msg, reply, err := s.findPoll(ctx, channelID)
	if msg == nil {
		return reply, err
	}
	members, err := s.p.ChannelMembers(ctx, guildID, pollChannel)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return MsgNoCachedMembers, nil
		}
		return "", fmt.Errorf("service: list channel members: %w", err)
	}
	sets, err := s.readAll(ctx, *msg)
	if err != nil {
		return "", err
	}
	voted := make(map[string]struct{})
	for _, set := range sets {
		for _, p := range set.Participants {
			voted[p.ID] = struct{}{}
		}
	}

	var l listing
	total := 0
	for _, m := range members {
		if m.ID == s.self.ID {
			continue
		}
		total++
		if _, ok := voted[m.ID]; ok {
			continue
		}
		l.add(s.resolver.Resolve(m, guildID), s.p.Mention(m.ID))
	}
	s.logQuery(ctx, guildID, pollChannel, msg.ID,
		fmt.Sprintf("%s requested the list of all members who have not voted yet (%d/%d):\n%s",
			s.p.Mention(invokerID), l.count, total, l.block()))

	switch {
	case l.count > 0:
		return fmt.Sprintf("The following members have not voted yet (%d/%d):\n%s", l.count, total, l.block()), nil
	case total > 0:
		return fmt.Sprintf("Everyone's voted (0/%d) 👌", total), nil
	}
	return MsgNoMembers, nil
}

// ListNotInVoice lists accepted participants who are not in any voice channel.
func (s *PollService) ListNotInVoice(ctx context.Context, guildID, channelID, invokerID string) (string, error) {
	pollChannel, msg, reply, err := s.findPoll(ctx, channelID)
	if msg == nil {
		return reply, err
	}
	set, err := s.reader.Read(ctx, *msg, models.OptionAccept, s.self)
	if err != nil {
		return "", err
	}
	inVoice, err := s.p.VoiceMembers(ctx, guildID)
	if err != nil {
		if errors.Is(err, models.ErrUnsupported) {
			return MsgVoiceUnsupported, nil
		}
		// without presence data everybody counts as absent
		s.l.Warn("failed to read voice presence", zap.String("guild_id", guildID), zap.Error(err))
		inVoice = nil
	}

	var absent, present listing
	for _, p := range set.Participants {
		name := s.resolver.Resolve(p, guildID)
		if _, ok := inVoice[p.ID]; ok {
			present.add(name, "")
			continue
		}
		absent.add(name, s.p.Mention(p.ID))
	}
	total := absent.count + present.count
	emoji := models.EmojiAccept
	s.logQuery(ctx, guildID, pollChannel, msg.ID,
		fmt.Sprintf("%s requested the list of all members who voted \"%s\" but are not in voice (%d/%d):\n%s\nPresent in voice channels right now (%d/%d):\n%s",
			s.p.Mention(invokerID), emoji, absent.count, total, absent.block(), present.count, total, present.names.String()))

	switch {
	case absent.count > 0:
		return fmt.Sprintf("The following members selected \"%s\" and are not present in any of the voice channels right now (%d/%d):\n%s",
			emoji, absent.count, total, absent.block()), nil
	case total > 0:
		return fmt.Sprintf("Everyone's in voice (%d/%d) 👌", present.count, total), nil
	}
	return fmt.Sprintf("Nobody selected \"%s\".", emoji), nil
}

// findPoll resolves the poll channel and its latest bot message. A nil message
// means the caller should answer with reply (and err, if any).
func (s *PollService) findPoll(ctx context.Context, channelID string) (string, *models.Message, string, error) {
	ch, err := s.p.Channel(ctx, channelID)
	if err != nil {
		return "", nil, "", fmt.Errorf("service: get channel: %w", err)
	}
	pollChannel, ok := PollChannel(ch)
	if !ok {
		return "", nil, MsgPollNotFound, nil
	}
	msg, err := s.LastOwnMessage(ctx, pollChannel)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, MsgPollNotFound, nil
		}
		return "", nil, "", err
	}
	return pollChannel, msg, "", nil
}

// PollChannel returns the channel a poll can live in: a text channel itself,
// or the parent of a thread.
func PollChannel(ch *models.Channel) (string, bool) {
	switch ch.Kind {
	case models.ChannelText:
		return ch.ID, true
	case models.ChannelThread:
		if ch.ParentID != "" {
			return ch.ParentID, true
		}
	}
	return "", false
}

// LastOwnMessage scans the channel history newest first for a bot message.
func (s *PollService) LastOwnMessage(ctx context.Context, channelID string) (*models.Message, error) {
	before := ""
	for scanned := 0; scanned < s.historyLimit; {
		limit := min(historyPage, s.historyLimit-scanned)
		page, err := s.p.RecentMessages(ctx, channelID, before, limit)
		if err != nil {
			s.l.Error("failed to read channel history", zap.String("channel_id", channelID), zap.Error(err))
			return nil, fmt.Errorf("service: read channel history: %w", err)
		}
		for _, m := range page {
			if m.AuthorID == s.self.ID && !m.Auxiliary {
				return m, nil
			}
		}
		if len(page) < limit {
			break
		}
		scanned += len(page)
		before = page[len(page)-1].ID
	}
	return nil, models.ErrNotFound
}

func (s *PollService) logQuery(ctx context.Context, guildID, channelID, pollMessageID, text string) {
	if err := s.audit.Append(ctx, guildID, channelID, pollMessageID, text); err != nil {
		s.l.Warn("failed to log query", zap.String("message_id", pollMessageID), zap.Error(err))
	}
}

// listing collects one name per line and a mention block that does not ping.
type listing struct {
	names    strings.Builder
	mentions []string
	count    int
}

func (l *listing) add(name, mention string) {
	l.names.WriteString(name)
	l.names.WriteString("\n")
	if mention != "" {
		l.mentions = append(l.mentions, mention)
	}
	l.count++
}

func (l *listing) block() string {
	if len(l.mentions) == 0 {
		return ""
	}
	return fmt.Sprintf("%s```%s```", l.names.String(), strings.Join(l.mentions, " "))
}
