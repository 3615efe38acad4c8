package service

import (
	"context"

	"github.com/jaam8/reaction_poll_bot/internal/models"
)

type ReactionStore interface {
	// ReactionUsers returns at most limit users holding emoji, oldest first.
	ReactionUsers(ctx context.Context, channelID, messageID, emoji string, limit int) ([]models.Participant, error)
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
}

type MessageStore interface {
	Message(ctx context.Context, channelID, messageID string) (*models.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, body string) error
	SendMessage(ctx context.Context, channelID, text string) (*models.Message, error)
	// RecentMessages returns up to limit messages older than beforeID (newest
	// first); an empty beforeID starts from the latest message.
	RecentMessages(ctx context.Context, channelID, beforeID string, limit int) ([]*models.Message, error)
}

type ThreadStore interface {
	// ActiveThreads lists active threads of a community. parentID is a hint for
	// backends that can only enumerate per channel; callers still filter.
	ActiveThreads(ctx context.Context, guildID, parentID string) ([]models.Thread, error)
	CreateThread(ctx context.Context, channelID, name string) (models.Thread, error)
}

type Directory interface {
	User(ctx context.Context, userID string) (models.Participant, error)
	Channel(ctx context.Context, channelID string) (*models.Channel, error)
	// ChannelMembers lists the community members allowed to see the channel.
	ChannelMembers(ctx context.Context, guildID, channelID string) ([]models.Participant, error)
	// VoiceMembers returns the ids of users connected to any voice channel.
	VoiceMembers(ctx context.Context, guildID string) (map[string]struct{}, error)
	Mention(userID string) string
}

// Snapshot is a local view of community nicknames. Reads never hit the network.
type Snapshot interface {
	Nickname(guildID, userID string) (string, bool)
}

// Platform is everything a chat backend has to provide.
type Platform interface {
	ReactionStore
	MessageStore
	ThreadStore
	Directory
	Snapshot
}
