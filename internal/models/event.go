package models

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeRemovedEmoji
	// ChangeCleared means every reaction on the message was removed at once.
	ChangeCleared
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeRemovedEmoji:
		return "removed_emoji"
	case ChangeCleared:
		return "cleared"
	}
	return "unknown"
}

// RawReaction is a reaction notification as delivered by a platform gateway,
// before any filtering.
type RawReaction struct {
	Kind      ChangeKind
	GuildID   string
	ChannelID string
	MessageID string
	// UserID is the reacting user, empty for emoji-wide removals.
	UserID string
	Emoji  string
	// CustomEmoji is set for community-defined (non-unicode) emoji.
	CustomEmoji bool
	// AuthorID is the poll message author when the gateway already knows it.
	AuthorID string
}

// ReactionChange is an accepted reaction notification.
type ReactionChange struct {
	Message Message
	Kind    ChangeKind
	Emoji   string
	// Actor is set only for ChangeAdded; it is the participant whose other
	// selections get removed.
	Actor string
	// UserID is whoever triggered the change, used for the audit line.
	UserID string
}

// FilterReason explains why a notification was ignored. Empty means accepted.
type FilterReason string

const (
	FilterNone           FilterReason = ""
	FilterCustomEmoji    FilterReason = "custom reaction"
	FilterUntrackedEmoji FilterReason = "ignored reaction"
	FilterNoGuild        FilterReason = "nothing in reaction guild id"
	FilterForeignMessage FilterReason = "reacted on someone else's message"
)
