package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/jaam8/reaction_poll_bot/internal/repository"
	"github.com/jaam8/reaction_poll_bot/internal/service"
	"go.uber.org/zap"
)

const (
	eventReactionAdd         = "MESSAGE_REACTION_ADD"
	eventReactionRemoveEmoji = "MESSAGE_REACTION_REMOVE_EMOJI"
	// discordMessageLimit is the longest content Discord accepts.
	discordMessageLimit = 2000
)

// DiscordHandler feeds gateway events into the poll service. discordgo runs
// every handler in its own goroutine, so events for different polls proceed
// independently.
type DiscordHandler struct {
	ctx      context.Context
	polls    *service.PollService
	repo     *repository.Discord
	commands *Commands
	guildID  string
	l        *zap.Logger
}

func NewDiscordHandler(ctx context.Context, polls *service.PollService, repo *repository.Discord,
	commands *Commands, guildID string, l *zap.Logger) *DiscordHandler {
	return &DiscordHandler{
		ctx:      ctx,
		polls:    polls,
		repo:     repo,
		commands: commands,
		guildID:  guildID,
		l:        l,
	}
}

func (h *DiscordHandler) Register(s *discordgo.Session) {
	s.AddHandler(h.onReady)
	s.AddHandler(h.onReactionRemove)
	s.AddHandler(h.onReactionRemoveAll)
	s.AddHandler(h.onEvent)
	s.AddHandler(h.onInteraction)
}

func (h *DiscordHandler) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	h.l.Info("connected", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
}

// RegisterCommands replaces the application's slash commands. The session
// must be open.
func (h *DiscordHandler) RegisterCommands(s *discordgo.Session) error {
	registered, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, h.guildID, applicationCommands())
	if err != nil {
		return fmt.Errorf("api: register slash commands: %w", err)
	}
	h.l.Info("registered slash commands",
		zap.Int("count", len(registered)),
		zap.String("guild_id", h.guildID))
	return nil
}

func (h *DiscordHandler) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	h.dispatch(reactionEvent(models.ChangeRemoved, r.MessageReaction))
}

func (h *DiscordHandler) onReactionRemoveAll(_ *discordgo.Session, r *discordgo.MessageReactionRemoveAll) {
	h.dispatch(reactionEvent(models.ChangeCleared, r.MessageReaction))
}

// onEvent reads reaction payloads straight from the gateway: additions carry
// the message author, and emoji removal has no typed handler in discordgo.
func (h *DiscordHandler) onEvent(_ *discordgo.Session, e *discordgo.Event) {
	raw, ok, err := gatewayReaction(e)
	if err != nil {
		h.l.Error("error unmarshalling reaction payload", zap.String("type", e.Type), zap.Error(err))
		return
	}
	if ok {
		h.dispatch(raw)
	}
}

type reactionPayload struct {
	discordgo.MessageReaction
	MessageAuthorID string `json:"message_author_id"`
}

func gatewayReaction(e *discordgo.Event) (models.RawReaction, bool, error) {
	var kind models.ChangeKind
	switch e.Type {
	case eventReactionAdd:
		kind = models.ChangeAdded
	case eventReactionRemoveEmoji:
		kind = models.ChangeRemovedEmoji
	default:
		return models.RawReaction{}, false, nil
	}
	var payload reactionPayload
	if err := json.Unmarshal(e.RawData, &payload); err != nil {
		return models.RawReaction{}, false, err
	}
	if kind == models.ChangeRemovedEmoji {
		payload.UserID = ""
	}
	raw := reactionEvent(kind, &payload.MessageReaction)
	raw.AuthorID = payload.MessageAuthorID
	return raw, true, nil
}

func (h *DiscordHandler) dispatch(raw models.RawReaction) {
	summary, err := h.polls.HandleReaction(h.ctx, raw)
	if err != nil {
		h.l.Error("reaction handling failed",
			zap.String("kind", raw.Kind.String()),
			zap.String("message_id", raw.MessageID),
			zap.Error(err))
		return
	}
	h.l.Debug("reaction handled",
		zap.String("kind", raw.Kind.String()),
		zap.String("summary", summary))
}

func (h *DiscordHandler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil || !h.repo.HasCommonRole(i.GuildID, i.Member.Roles) {
		h.l.Info("command refused", zap.String("command", name), zap.String("guild_id", i.GuildID))
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: MsgNoPermission,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}); err != nil {
			h.l.Error("cannot respond to slash command", zap.Error(err))
		}
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		h.l.Error("cannot respond to slash command", zap.Error(err))
		return
	}

	reply := h.commands.Run(h.ctx, Invocation{
		Command:   name,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    i.Member.User.ID,
	})
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: truncate(reply, discordMessageLimit),
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		h.l.Error("cannot send slash command follow-up", zap.String("command", name), zap.Error(err))
	}
}

func reactionEvent(kind models.ChangeKind, r *discordgo.MessageReaction) models.RawReaction {
	return models.RawReaction{
		Kind:        kind,
		GuildID:     r.GuildID,
		ChannelID:   r.ChannelID,
		MessageID:   r.MessageID,
		UserID:      r.UserID,
		Emoji:       r.Emoji.Name,
		CustomEmoji: r.Emoji.ID != "",
	}
}

func applicationCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(commandList))
	for _, c := range commandList {
		out = append(out, &discordgo.ApplicationCommand{Name: c.Name, Description: c.Description})
	}
	return out
}
