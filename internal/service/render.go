package service

import (
	"fmt"
	"strings"

	"github.com/jaam8/reaction_poll_bot/internal/models"
)

// DefaultSpacer is an invisible line on Discord that keeps blank lines around the body.
const DefaultSpacer = "_ _"

// Renderer builds the poll message body:
//
//	_ _
//	✅ **__Accepted__ (2):**
//	Nickname1
//	ServerNick2
//
//	❌ **__Declined__:**
//	...
type Renderer struct {
	resolver *NameResolver
	spacer   string
	// maxNames caps listed names per section, 0 lists everyone.
	maxNames int
}

func NewRenderer(resolver *NameResolver, spacer string, maxNames int) *Renderer {
	if spacer == "" {
		spacer = DefaultSpacer
	}
	if maxNames < 0 {
		maxNames = 0
	}
	return &Renderer{resolver: resolver, spacer: spacer, maxNames: maxNames}
}

func (r *Renderer) Render(guildID string, accepted, declined, tentative []models.Participant, self models.Self) string {
	sections := [...][]models.Participant{accepted, declined, tentative}
	var b strings.Builder
	b.WriteString(r.spacer)
	b.WriteString("\n")
	for i, o := range models.Options {
		b.WriteString(r.section(guildID, o, sections[i], self))
		b.WriteString("\n")
	}
	b.WriteString(r.spacer)
	return b.String()
}

// RenderSets renders reaction sets indexed by option.
func (r *Renderer) RenderSets(guildID string, sets models.Selections, self models.Self) string {
	return r.Render(guildID,
		sets[models.OptionAccept].Participants,
		sets[models.OptionDecline].Participants,
		sets[models.OptionTentative].Participants,
		self)
}

func (r *Renderer) section(guildID string, o models.Option, participants []models.Participant, self models.Self) string {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.ID == self.ID {
			continue
		}
		names = append(names, r.resolver.Resolve(p, guildID))
	}

	var b strings.Builder
	b.WriteString(header(o, len(names)))
	listed := names
	if r.maxNames > 0 && len(names) > r.maxNames {
		listed = names[:r.maxNames]
	}
	for _, name := range listed {
		b.WriteString(name)
		b.WriteString("\n")
	}
	if hidden := len(names) - len(listed); hidden > 0 {
		fmt.Fprintf(&b, "…and %d more\n", hidden)
	}
	return b.String()
}

func header(o models.Option, count int) string {
	return fmt.Sprintf("%s **__%s__%s:**\n", o.Emoji(), o.Label(), CountSuffix(count))
}

// CountSuffix is " (n)" for a positive count and empty otherwise.
func CountSuffix(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d)", n)
}
