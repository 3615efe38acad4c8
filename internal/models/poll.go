package models

import "errors"

var (
	ErrTransport        = errors.New("platform request failed")
	ErrReconcile        = errors.New("reconciliation failed")
	ErrNotFound         = errors.New("not found")
	ErrUnsupported      = errors.New("not supported by the platform")
	ErrNotGuildChannel  = errors.New("not a guild channel")
	ErrNotTextChannel   = errors.New("not a text channel")
	ErrInvalidPageLimit = errors.New("page limit should be between 1 and 100")
)

const (
	EmojiAccept    = "✅"
	EmojiDecline   = "❌"
	EmojiTentative = "❔"
)

// MaxPageLimit is the largest reaction page a platform returns in one request.
const MaxPageLimit = 100

// Option is one of the three tracked poll choices.
type Option int

const (
	OptionAccept Option = iota
	OptionDecline
	OptionTentative
)

// OptionCount is the number of tracked options on every poll.
const OptionCount = 3

// Options lists the tracked options in render order.
var Options = [OptionCount]Option{OptionAccept, OptionDecline, OptionTentative}

func (o Option) Emoji() string {
	switch o {
	case OptionAccept:
		return EmojiAccept
	case OptionDecline:
		return EmojiDecline
	case OptionTentative:
		return EmojiTentative
	}
	return ""
}

func (o Option) Label() string {
	switch o {
	case OptionAccept:
		return "Accepted"
	case OptionDecline:
		return "Declined"
	case OptionTentative:
		return "Tentative"
	}
	return "Unknown"
}

func (o Option) String() string {
	return o.Label()
}

// OptionByEmoji maps a unicode glyph to its tracked option.
func OptionByEmoji(emoji string) (Option, bool) {
	for _, o := range Options {
		if o.Emoji() == emoji {
			return o, true
		}
	}
	return 0, false
}

// Self identifies the bot account the poll messages belong to.
type Self struct {
	ID string
}

type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// DisplayName is the global display name, empty when the platform has none.
	DisplayName string `json:"display_name"`
}

// Name returns the global name used when no community nickname is known.
func (p Participant) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	}
	return p.ID
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
	// Auxiliary marks bot output that can't be a poll: system messages,
	// thread replies, audit thread roots.
	Auxiliary bool `json:"auxiliary"`
}

type ChannelKind int

const (
	ChannelOther ChannelKind = iota
	ChannelText
	ChannelThread
)

type Channel struct {
	ID       string      `json:"id"`
	GuildID  string      `json:"guild_id"`
	ParentID string      `json:"parent_id"`
	Kind     ChannelKind `json:"kind"`
}

type Thread struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

// ReactionSet is the ordered list of participants holding one tracked emoji,
// oldest reaction first. Capped reports that the platform page was full, so
// participants beyond it are not tracked.
type ReactionSet struct {
	Option       Option
	Participants []Participant
	Capped       bool
}

func (s ReactionSet) Has(userID string) bool {
	for _, p := range s.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Without returns a copy of the set with userID dropped.
func (s ReactionSet) Without(userID string) ReactionSet {
	out := ReactionSet{Option: s.Option, Capped: s.Capped}
	out.Participants = make([]Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.ID != userID {
			out.Participants = append(out.Participants, p)
		}
	}
	return out
}

// Selections holds one reaction set per option, indexed by Option.
type Selections [OptionCount]ReactionSet
