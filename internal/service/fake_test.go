package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jaam8/reaction_poll_bot/internal/models"
)

const (
	botID   = "bot"
	guildID = "g1"
	chanID  = "c1"
	pollID  = "p1"
)

type sentMessage struct {
	ChannelID string
	Text      string
}

type removal struct {
	MessageID string
	Emoji     string
	UserID    string
}

type edit struct {
	MessageID string
	Body      string
}

// fakePlatform is an in-memory Platform that records every outbound call.
type fakePlatform struct {
	mu sync.Mutex

	reactions map[string][]models.Participant
	history   map[string][]*models.Message
	messages  map[string]*models.Message
	channels  map[string]*models.Channel
	members   map[string][]models.Participant
	voice     map[string]struct{}
	users     map[string]models.Participant
	nicks     map[string]string
	threads   []models.Thread

	reactErr   error
	listErr    error
	membersErr error
	voiceErr   error
	editErr    error
	removeErr  map[string]error // per emoji

	calls    int
	edits    []edit
	sent     []sentMessage
	removals []removal
	added    []string
	created  []models.Thread
	nextID   int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		reactions: make(map[string][]models.Participant),
		history:   make(map[string][]*models.Message),
		messages:  make(map[string]*models.Message),
		channels:  make(map[string]*models.Channel),
		members:   make(map[string][]models.Participant),
		voice:     make(map[string]struct{}),
		users:     make(map[string]models.Participant),
		nicks:     make(map[string]string),
		removeErr: make(map[string]error),
	}
}

func reactionKey(messageID, emoji string) string {
	return messageID + "/" + emoji
}

func (f *fakePlatform) addUser(p models.Participant, nick string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[p.ID] = p
	if nick != "" {
		f.nicks[p.ID] = nick
	}
}

// react simulates a participant reacting on the platform side.
func (f *fakePlatform) react(messageID, emoji string, p models.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey(messageID, emoji)
	f.reactions[key] = append(f.reactions[key], p)
}

func (f *fakePlatform) holders(messageID, emoji string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, p := range f.reactions[reactionKey(messageID, emoji)] {
		ids = append(ids, p.ID)
	}
	return ids
}

func (f *fakePlatform) post(channelID string, m *models.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// newest first
	f.history[channelID] = append([]*models.Message{m}, f.history[channelID]...)
	f.messages[m.ID] = m
}

func (f *fakePlatform) outbound() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePlatform) lastEdit() edit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return edit{}
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakePlatform) sentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (f *fakePlatform) ReactionUsers(_ context.Context, _, messageID, emoji string, limit int) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	users := f.reactions[reactionKey(messageID, emoji)]
	return slices.Clone(users[:min(limit, len(users))]), nil
}

func (f *fakePlatform) RemoveReaction(_ context.Context, _, messageID, emoji, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.removals = append(f.removals, removal{MessageID: messageID, Emoji: emoji, UserID: userID})
	if err := f.removeErr[emoji]; err != nil {
		return err
	}
	key := reactionKey(messageID, emoji)
	f.reactions[key] = slices.DeleteFunc(f.reactions[key], func(p models.Participant) bool {
		return p.ID == userID
	})
	return nil
}

func (f *fakePlatform) AddReaction(_ context.Context, _, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.added = append(f.added, emoji)
	key := reactionKey(messageID, emoji)
	f.reactions[key] = append(f.reactions[key], models.Participant{ID: botID, Username: "pollbot"})
	return nil
}

func (f *fakePlatform) Message(_ context.Context, _, messageID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	m, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, models.ErrNotFound)
	}
	return m, nil
}

func (f *fakePlatform) EditMessage(_ context.Context, _, messageID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, edit{MessageID: messageID, Body: body})
	return nil
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID, text string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Text: text})
	return &models.Message{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID, AuthorID: botID, Content: text}, nil
}

func (f *fakePlatform) RecentMessages(_ context.Context, channelID, beforeID string, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	all := f.history[channelID]
	start := 0
	if beforeID != "" {
		start = len(all)
		for i, m := range all {
			if m.ID == beforeID {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(all))
	return slices.Clone(all[start:end]), nil
}

func (f *fakePlatform) ActiveThreads(context.Context, string, string) ([]models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.threads), nil
}

func (f *fakePlatform) CreateThread(_ context.Context, channelID, name string) (models.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.nextID++
	t := models.Thread{ID: fmt.Sprintf("t%d", f.nextID), ParentID: channelID, Name: name}
	f.threads = append(f.threads, t)
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakePlatform) User(_ context.Context, userID string) (models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.users[userID]
	if !ok {
		return models.Participant{}, models.ErrNotFound
	}
	return p, nil
}

func (f *fakePlatform) Channel(_ context.Context, channelID string) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if ch, ok := f.channels[channelID]; ok {
		return ch, nil
	}
	return &models.Channel{ID: channelID, GuildID: guildID, Kind: models.ChannelText}, nil
}

func (f *fakePlatform) ChannelMembers(_ context.Context, _, channelID string) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	return slices.Clone(f.members[channelID]), nil
}

func (f *fakePlatform) VoiceMembers(context.Context, string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return f.voice, nil
}

func (f *fakePlatform) Mention(userID string) string {
	return "<@" + userID + ">"
}

func (f *fakePlatform) Nickname(_, userID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	nick, ok := f.nicks[userID]
	return nick, ok
}

var (
	alice = models.Participant{ID: "u1", Username: "alice"}
	bob   = models.Participant{ID: "u2", Username: "bob"}
	carol = models.Participant{ID: "u3", Username: "carol"}
	self  = models.Self{ID: botID}
)

// pollMessage is the bot-authored poll every scenario reacts on.
var pollMessage = &models.Message{ID: pollID, ChannelID: chanID, GuildID: guildID, AuthorID: botID}
