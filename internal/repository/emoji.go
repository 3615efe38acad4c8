package repository

import "github.com/jaam8/reaction_poll_bot/internal/models"

// Mattermost names reactions by shortcode instead of the unicode glyph.
var emojiNames = map[string]string{
	models.EmojiAccept:    "white_check_mark",
	models.EmojiDecline:   "x",
	models.EmojiTentative: "grey_question",
}

func EmojiName(glyph string) (string, bool) {
	name, ok := emojiNames[glyph]
	return name, ok
}

// EmojiGlyph maps a shortcode back to its glyph. Untracked shortcodes come back
// as ":name:" so they never match a tracked glyph.
func EmojiGlyph(name string) string {
	for glyph, n := range emojiNames {
		if n == name {
			return glyph
		}
	}
	return ":" + name + ":"
}
