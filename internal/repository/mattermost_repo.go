package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jaam8/reaction_poll_bot/internal/models"
	"github.com/mattermost/mattermost-server/v6/model"
	"go.uber.org/zap"
)

const (
	// AuditThreadProp marks the root post of an audit thread.
	AuditThreadProp = "poll_audit_thread"
	threadScanSize  = 200
	memberPageSize  = 200
	// authorCacheSize bounds the post author cache; it is reset when full.
	authorCacheSize = 5000
)

// Mattermost maps the poll platform onto Mattermost: a community is a team, an
// audit thread is a root post tagged with AuditThreadProp and its replies.
// Thread ids have the form "<channel id>:<root post id>".
type Mattermost struct {
	c     *model.Client4
	botID string
	l     *zap.Logger

	mu      sync.RWMutex
	users   map[string]*model.User
	authors map[string]string
}

func NewMattermost(c *model.Client4, botID string, l *zap.Logger) *Mattermost {
	return &Mattermost{
		c:       c,
		botID:   botID,
		l:       l,
		users:   make(map[string]*model.User),
		authors: make(map[string]string),
	}
}

func (r *Mattermost) ReactionUsers(_ context.Context, _, postID, emoji string, limit int) ([]models.Participant, error) {
	name, ok := EmojiName(emoji)
	if !ok {
		return nil, fmt.Errorf("repository: emoji %q: %w", emoji, models.ErrUnsupported)
	}
	reactions, resp, err := r.c.GetReactions(postID)
	if err != nil {
		return nil, r.fail("read reactions", resp, err)
	}
	matching := make([]*model.Reaction, 0, len(reactions))
	for _, reaction := range reactions {
		if reaction.EmojiName == name {
			matching = append(matching, reaction)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].CreateAt < matching[j].CreateAt
	})
	if len(matching) > limit {
		matching = matching[:limit]
	}
	r.l.Debug("mattermost reactions",
		zap.String("post_id", postID),
		zap.String("emoji_name", name),
		zap.Int("count", len(matching)))

	ids := make([]string, 0, len(matching))
	for _, reaction := range matching {
		ids = append(ids, reaction.UserId)
	}
	return r.participants(ids)
}

func (r *Mattermost) RemoveReaction(_ context.Context, _, postID, emoji, userID string) error {
	name, ok := EmojiName(emoji)
	if !ok {
		return fmt.Errorf("repository: emoji %q: %w", emoji, models.ErrUnsupported)
	}
	resp, err := r.c.DeleteReaction(&model.Reaction{UserId: userID, PostId: postID, EmojiName: name})
	if err != nil {
		return r.fail("remove reaction", resp, err)
	}
	return nil
}

func (r *Mattermost) AddReaction(_ context.Context, _, postID, emoji string) error {
	name, ok := EmojiName(emoji)
	if !ok {
		return fmt.Errorf("repository: emoji %q: %w", emoji, models.ErrUnsupported)
	}
	_, resp, err := r.c.SaveReaction(&model.Reaction{UserId: r.botID, PostId: postID, EmojiName: name})
	if err != nil {
		return r.fail("add reaction", resp, err)
	}
	return nil
}

func (r *Mattermost) Message(_ context.Context, _, postID string) (*models.Message, error) {
	post, resp, err := r.c.GetPost(postID, "")
	if err != nil {
		return nil, r.fail("get post", resp, err)
	}
	r.RememberPost(post)
	return postMessage(post), nil
}

func (r *Mattermost) EditMessage(_ context.Context, _, postID, body string) error {
	_, resp, err := r.c.PatchPost(postID, &model.PostPatch{Message: &body})
	if err != nil {
		return r.fail("patch post", resp, err)
	}
	return nil
}

// SendMessage posts into a channel, or replies when channelID is a thread id.
func (r *Mattermost) SendMessage(_ context.Context, channelID, text string) (*models.Message, error) {
	channel, root := SplitThreadID(channelID)
	post, resp, err := r.c.CreatePost(&model.Post{ChannelId: channel, RootId: root, Message: text})
	if err != nil {
		return nil, r.fail("create post", resp, err)
	}
	r.l.Debug("send new message",
		zap.String("channel_id", post.ChannelId),
		zap.String("root_id", post.RootId))
	r.RememberPost(post)
	return postMessage(post), nil
}

func (r *Mattermost) RecentMessages(_ context.Context, channelID, beforeID string, limit int) ([]*models.Message, error) {
	var (
		list *model.PostList
		resp *model.Response
		err  error
	)
	if beforeID == "" {
		list, resp, err = r.c.GetPostsForChannel(channelID, 0, limit, "", false)
	} else {
		list, resp, err = r.c.GetPostsBefore(channelID, beforeID, 0, limit, "", false)
	}
	if err != nil {
		return nil, r.fail("list posts", resp, err)
	}
	out := make([]*models.Message, 0, len(list.Order))
	for _, id := range list.Order {
		if post, ok := list.Posts[id]; ok {
			r.RememberPost(post)
			out = append(out, postMessage(post))
		}
	}
	return out, nil
}

// ActiveThreads scans recent root posts of parentID for audit thread roots.
// Mattermost has no community-wide thread listing.
func (r *Mattermost) ActiveThreads(_ context.Context, _, parentID string) ([]models.Thread, error) {
	list, resp, err := r.c.GetPostsForChannel(parentID, 0, threadScanSize, "", false)
	if err != nil {
		return nil, r.fail("list posts", resp, err)
	}
	var out []models.Thread
	for _, id := range list.Order {
		post, ok := list.Posts[id]
		if !ok || post.RootId != "" {
			continue
		}
		name, ok := post.GetProp(AuditThreadProp).(string)
		if !ok {
			continue
		}
		out = append(out, models.Thread{
			ID:       ThreadID(post.ChannelId, post.Id),
			ParentID: post.ChannelId,
			Name:     name,
		})
	}
	return out, nil
}

// CreateThread posts a tagged root post. Mattermost threads can't be private;
// the thread is visible to channel members.
func (r *Mattermost) CreateThread(_ context.Context, channelID, name string) (models.Thread, error) {
	post := &model.Post{ChannelId: channelID, Message: name}
	post.AddProp(AuditThreadProp, name)
	created, resp, err := r.c.CreatePost(post)
	if err != nil {
		return models.Thread{}, r.fail("create thread root", resp, err)
	}
	return models.Thread{ID: ThreadID(channelID, created.Id), ParentID: channelID, Name: name}, nil
}

func (r *Mattermost) User(_ context.Context, userID string) (models.Participant, error) {
	u, err := r.user(userID)
	if err != nil {
		return models.Participant{}, err
	}
	return userParticipant(u), nil
}

func (r *Mattermost) Channel(_ context.Context, channelID string) (*models.Channel, error) {
	id, root := SplitThreadID(channelID)
	ch, resp, err := r.c.GetChannel(id, "")
	if err != nil {
		return nil, r.fail("get channel", resp, err)
	}
	out := &models.Channel{ID: channelID, GuildID: ch.TeamId}
	switch {
	case root != "":
		out.Kind = models.ChannelThread
		out.ParentID = ch.Id
	case ch.Type == model.ChannelTypeOpen || ch.Type == model.ChannelTypePrivate:
		out.Kind = models.ChannelText
	}
	return out, nil
}

func (r *Mattermost) ChannelMembers(_ context.Context, _, channelID string) ([]models.Participant, error) {
	members, resp, err := r.c.GetChannelMembers(channelID, 0, memberPageSize, "")
	if err != nil {
		return nil, r.fail("list channel members", resp, err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserId)
	}
	return r.participants(ids)
}

func (r *Mattermost) VoiceMembers(context.Context, string) (map[string]struct{}, error) {
	return nil, fmt.Errorf("repository: voice presence: %w", models.ErrUnsupported)
}

func (r *Mattermost) Mention(userID string) string {
	u, err := r.user(userID)
	if err != nil {
		return "@" + userID
	}
	return "@" + u.Username
}

// Nickname reads the profile nickname of users already fetched.
func (r *Mattermost) Nickname(_, userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok || u.Nickname == "" {
		return "", false
	}
	return u.Nickname, true
}

// Ephemeral shows text only to userID.
func (r *Mattermost) Ephemeral(channelID, userID, text string) error {
	channel, root := SplitThreadID(channelID)
	_, resp, err := r.c.CreatePostEphemeral(&model.PostEphemeral{
		UserID: userID,
		Post:   &model.Post{ChannelId: channel, RootId: root, Message: text},
	})
	if err != nil {
		return r.fail("create ephemeral post", resp, err)
	}
	return nil
}

func (r *Mattermost) user(userID string) (*model.User, error) {
	r.mu.RLock()
	u, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return u, nil
	}
	u, resp, err := r.c.GetUser(userID, "")
	if err != nil {
		return nil, r.fail("get user", resp, err)
	}
	r.remember(u)
	return u, nil
}

// participants loads profiles for ids, keeping the order of ids.
func (r *Mattermost) participants(ids []string) ([]models.Participant, error) {
	out := make([]models.Participant, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, resp, err := r.c.GetUsersByIds(ids)
	if err != nil {
		return nil, r.fail("get users", resp, err)
	}
	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.Id] = u
		r.remember(u)
	}
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, userParticipant(u))
			continue
		}
		out = append(out, models.Participant{ID: id})
	}
	return out, nil
}

// RememberPost records who wrote a post so reaction events on it can be
// classified without fetching the post.
func (r *Mattermost) RememberPost(p *model.Post) {
	if p == nil || p.Id == "" || p.UserId == "" {
		return
	}
	r.mu.Lock()
	if len(r.authors) >= authorCacheSize {
		r.authors = make(map[string]string)
	}
	r.authors[p.Id] = p.UserId
	r.mu.Unlock()
}

// PostAuthor returns the cached author of a post.
func (r *Mattermost) PostAuthor(postID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	author, ok := r.authors[postID]
	return author, ok
}

func (r *Mattermost) remember(u *model.User) {
	r.mu.Lock()
	r.users[u.Id] = u
	r.mu.Unlock()
}

func (r *Mattermost) fail(op string, resp *model.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	r.l.Debug("mattermost request failed",
		zap.String("op", op),
		zap.Int("status_code", status),
		zap.Error(err))
	return fmt.Errorf("repository: %s: %w: %w", op, models.ErrTransport, err)
}

// ThreadID joins a channel id and a root post id.
func ThreadID(channelID, rootID string) string {
	return channelID + ":" + rootID
}

// SplitThreadID returns the channel and root post of a thread id; plain channel
// ids have an empty root.
func SplitThreadID(id string) (string, string) {
	channel, root, _ := strings.Cut(id, ":")
	return channel, root
}

func userParticipant(u *model.User) models.Participant {
	return models.Participant{
		ID:          u.Id,
		Username:    u.Username,
		DisplayName: u.GetFullName(),
	}
}

func postMessage(p *model.Post) *models.Message {
	_, audit := p.GetProp(AuditThreadProp).(string)
	return &models.Message{
		ID:        p.Id,
		ChannelID: p.ChannelId,
		AuthorID:  p.UserId,
		Content:   p.Message,
		Auxiliary: p.RootId != "" || audit,
	}
}
