package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type Config struct {
	// GuildID scopes slash command registration; empty registers globally.
	GuildID string `yaml:"DISCORD_GUILD_ID" env:"DISCORD_GUILD_ID"`
}

// Intents needed for reactions, the member/nickname cache and voice presence.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildPresences |
	discordgo.IntentsGuildVoiceStates

// MessageCacheSize is how many messages per channel the session state keeps.
const MessageCacheSize = 200

// New builds a session; the gateway connection is opened by the caller.
func New(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.New("discord: empty bot token")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	s.Identify.Intents = Intents
	s.StateEnabled = true
	s.State.TrackMembers = true
	s.State.TrackVoice = true
	s.State.MaxMessageCount = MessageCacheSize
	return s, nil
}

// Self looks up the bot account over REST, so it works before the gateway is
// open.
func Self(s *discordgo.Session) (*discordgo.User, error) {
	u, err := s.User("@me")
	if err != nil {
		return nil, fmt.Errorf("discord: get bot user: %w", err)
	}
	return u, nil
}

// Connect attaches handlers and then opens the gateway. Events that arrive
// before a handler is added are dropped by discordgo, READY included.
func Connect(s *discordgo.Session, register func(*discordgo.Session)) error {
	register(s)
	if err := s.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	return nil
}
