package api

import (
	"context"
	"fmt"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/internal/service"
	"github.com/jaam8/reaction_poll_bot/pkg/metrics"
	"go.uber.org/zap"
)

const (
	CmdNewPoll       = "new_poll"
	CmdGetAccepted   = "get_accepted"
	CmdGetTentative  = "get_tentative"
	CmdGetNotVoted   = "get_not_voted"
	CmdGetNotInVoice = "get_not_in_voice"
)

const (
	MsgSlowDown       = "You're sending commands too fast, try again in a moment."
	MsgNotImplemented = "Not implemented :("
	MsgNoPermission   = "To use this command you have to be in the guild text channel while having at least one common role with the bot."
)

type commandInfo struct {
	Name        string
	Description string
}

var commandList = []commandInfo{
	{CmdNewPoll, "Create new poll"},
	{CmdGetAccepted, "Get a list of all users (mentionable) who selected " + models.EmojiAccept + "."},
	{CmdGetTentative, "Get the list of all users (mentionable) who selected " + models.EmojiTentative + "."},
	{CmdGetNotVoted, "Get the list of all users (mentionable) who have access to the channel, but haven't voted 👀"},
	{CmdGetNotInVoice, "Get the list of users who selected " + models.EmojiAccept + " but are not present in any of the voice channels right now 🔇"},
}

// Invocation is a command call coming from any platform.
type Invocation struct {
	Command   string
	GuildID   string
	ChannelID string
	UserID    string
}

// Commands runs the command surface on top of the poll service. Every call
// produces a reply text; failures are reported in the text, never returned.
type Commands struct {
	polls   *service.PollService
	limiter *Limiter
	l       *zap.Logger
}

func NewCommands(polls *service.PollService, limiter *Limiter, l *zap.Logger) *Commands {
	return &Commands{polls: polls, limiter: limiter, l: l}
}

func (c *Commands) Run(ctx context.Context, inv Invocation) string {
	if c.limiter != nil && !c.limiter.Allow(inv.UserID) {
		metrics.Commands.WithLabelValues(inv.Command, "throttled").Inc()
		c.l.Warn("command throttled",
			zap.String("command", inv.Command),
			zap.String("user_id", inv.UserID))
		return MsgSlowDown
	}
	c.l.Info("new request for the bot",
		zap.String("command", inv.Command),
		zap.String("user_id", inv.UserID),
		zap.String("guild_id", inv.GuildID),
		zap.String("channel_id", inv.ChannelID))

	var (
		reply string
		err   error
	)
	switch inv.Command {
	case CmdNewPoll:
		reply, err = c.polls.NewPoll(ctx, inv.GuildID, inv.ChannelID, inv.UserID)
	case CmdGetAccepted:
		reply, err = c.polls.ListVoters(ctx, inv.GuildID, inv.ChannelID, inv.UserID, models.OptionAccept)
	case CmdGetTentative:
		reply, err = c.polls.ListVoters(ctx, inv.GuildID, inv.ChannelID, inv.UserID, models.OptionTentative)
	case CmdGetNotVoted:
		reply, err = c.polls.ListNotVoted(ctx, inv.GuildID, inv.ChannelID, inv.UserID)
	case CmdGetNotInVoice:
		reply, err = c.polls.ListNotInVoice(ctx, inv.GuildID, inv.ChannelID, inv.UserID)
	default:
		metrics.Commands.WithLabelValues("unknown", "error").Inc()
		return MsgNotImplemented
	}
	metrics.Commands.WithLabelValues(inv.Command, metrics.Result(err)).Inc()
	if err != nil {
		c.l.Error("command failed",
			zap.String("command", inv.Command),
			zap.String("user_id", inv.UserID),
			zap.Error(err))
		return fmt.Sprintf("'/%s' error: %s", inv.Command, err)
	}
	return reply
}

// truncate cuts s to at most max runes, marking the cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
