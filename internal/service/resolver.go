package service

import (
	"strings"

	"github.com/jaam8/reaction_poll_bot/internal/models"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
	"`", "\\`",
	`|`, `\|`,
	`>`, `\>`,
	`#`, `\#`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`@everyone`, "@\u200beveryone",
	`@here`, "@\u200bhere",
	`@channel`, "@\u200bchannel",
	`@all`, "@\u200ball",
)

// EscapeMarkdown neutralizes chat markup and mass mentions in user supplied text.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// NameResolver turns participants into display names from whatever snapshot
// the caller already holds.
type NameResolver struct {
	snapshot Snapshot
}

func NewNameResolver(snapshot Snapshot) *NameResolver {
	return &NameResolver{snapshot: snapshot}
}

// Resolve prefers the community nickname and falls back to the global name.
// The result is escaped.
func (r *NameResolver) Resolve(p models.Participant, guildID string) string {
	if nick, ok := r.Nickname(p.ID, guildID); ok {
		return EscapeMarkdown(nick)
	}
	return EscapeMarkdown(p.Name())
}

// Nickname returns the raw community nickname, if the snapshot knows one.
func (r *NameResolver) Nickname(userID, guildID string) (string, bool) {
	if r.snapshot == nil || guildID == "" {
		return "", false
	}
	nick, ok := r.snapshot.Nickname(guildID, userID)
	if !ok || nick == "" {
		return "", false
	}
	return nick, true
}
