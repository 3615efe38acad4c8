package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/internal/repository"
	"github.com/jaam8/reaction_poll_bot/internal/service"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const (
	COMMAND     = "!poll"
	HelpMessage = "i know only this commands:\n- `!poll new`\n- `!poll accepted`\n- `!poll tentative`\n- `!poll not_voted`\n- `!poll not_in_voice`\n- `!poll help`"
)

var subcommands = map[string]string{
	"new":          CmdNewPoll,
	"accepted":     CmdGetAccepted,
	"tentative":    CmdGetTentative,
	"not_voted":    CmdGetNotVoted,
	"not_in_voice": CmdGetNotInVoice,
}

var errNoPayload = errors.New("event has no payload")

type MattermostHandler struct {
	polls    *service.PollService
	repo     *repository.Mattermost
	commands *Commands
	botID    string
	l        *zap.Logger
}

func NewMattermostHandler(polls *service.PollService, repo *repository.Mattermost,
	commands *Commands, botID string, l *zap.Logger) *MattermostHandler {
	return &MattermostHandler{
		polls:    polls,
		repo:     repo,
		commands: commands,
		botID:    botID,
		l:        l,
	}
}

// Listen consumes websocket events until ctx is done or events is closed.
func (h *MattermostHandler) Listen(ctx context.Context, events <-chan *model.WebSocketEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			go h.HandleEvent(ctx, event)
		}
	}
}

func (h *MattermostHandler) HandleEvent(ctx context.Context, event *model.WebSocketEvent) {
	h.l.Debug("new event", zap.String("event", event.EventType()))
	switch event.EventType() {
	case model.WebsocketEventPosted:
		h.HandleMessage(ctx, event)
	case model.WebsocketEventReactionAdded:
		h.HandleReaction(ctx, event, models.ChangeAdded)
	case model.WebsocketEventReactionRemoved:
		h.HandleReaction(ctx, event, models.ChangeRemoved)
	}
}

func (h *MattermostHandler) HandleReaction(ctx context.Context, event *model.WebSocketEvent, kind models.ChangeKind) {
	reaction, err := decodeReaction(event)
	if err != nil {
		h.l.Error("error unmarshalling reaction", zap.Error(err))
		return
	}
	var channelID string
	if b := event.GetBroadcast(); b != nil {
		channelID = b.ChannelId
	}
	raw := models.RawReaction{
		Kind:      kind,
		ChannelID: channelID,
		MessageID: reaction.PostId,
		UserID:    reaction.UserId,
		Emoji:     repository.EmojiGlyph(reaction.EmojiName),
	}
	author, known := h.repo.PostAuthor(reaction.PostId)
	raw.AuthorID = author
	// team lookup costs a request, skip it for reactions that get filtered anyway
	if _, tracked := models.OptionByEmoji(raw.Emoji); tracked && (!known || author == h.botID) {
		ch, err := h.repo.Channel(ctx, channelID)
		if err != nil {
			h.l.Error("failed to get reaction channel", zap.String("channel_id", channelID), zap.Error(err))
			return
		}
		raw.GuildID = ch.GuildID
	}

	summary, err := h.polls.HandleReaction(ctx, raw)
	if err != nil {
		h.l.Error("reaction handling failed",
			zap.String("kind", kind.String()),
			zap.String("post_id", raw.MessageID),
			zap.Error(err))
		return
	}
	h.l.Debug("reaction handled", zap.String("kind", kind.String()), zap.String("summary", summary))
}

func (h *MattermostHandler) HandleMessage(ctx context.Context, event *model.WebSocketEvent) {
	post, err := decodePost(event)
	if err != nil {
		h.l.Error("error unmarshalling post", zap.Error(err))
		return
	}
	h.repo.RememberPost(post)
	if post.UserId == h.botID {
		return
	}

	args := strings.Fields(post.Message)
	if len(args) == 0 || args[0] != COMMAND {
		return
	}
	channelID := post.ChannelId
	if post.RootId != "" {
		channelID = repository.ThreadID(post.ChannelId, post.RootId)
	}
	if len(args) < 2 {
		h.reply(post, HelpMessage)
		return
	}
	command, ok := subcommands[args[1]]
	if !ok {
		h.reply(post, HelpMessage)
		return
	}

	ch, err := h.repo.Channel(ctx, post.ChannelId)
	if err != nil {
		h.l.Error("failed to get command channel", zap.String("channel_id", post.ChannelId), zap.Error(err))
		h.reply(post, "somthing went wrong")
		return
	}
	h.reply(post, h.commands.Run(ctx, Invocation{
		Command:   command,
		GuildID:   ch.GuildID,
		ChannelID: channelID,
		UserID:    post.UserId,
	}))
}

func (h *MattermostHandler) reply(post *model.Post, text string) {
	if err := h.repo.Ephemeral(post.ChannelId, post.UserId, text); err != nil {
		h.l.Error("failed to send ephemeral reply", zap.String("user_id", post.UserId), zap.Error(err))
	}
}

func decodePost(event *model.WebSocketEvent) (*model.Post, error) {
	data, ok := event.GetData()["post"].(string)
	if !ok {
		return nil, errNoPayload
	}
	post := &model.Post{}
	if err := json.Unmarshal([]byte(data), post); err != nil {
		return nil, err
	}
	return post, nil
}

func decodeReaction(event *model.WebSocketEvent) (*model.Reaction, error) {
	data, ok := event.GetData()["reaction"].(string)
	if !ok {
		return nil, errNoPayload
	}
	reaction := &model.Reaction{}
	if err := json.Unmarshal([]byte(data), reaction); err != nil {
		return nil, err
	}
	return reaction, nil
}
