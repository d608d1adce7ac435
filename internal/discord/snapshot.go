package discord

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/aurumco/ryde/internal/snapshot"
	"github.com/aurumco/ryde/pkg/logx"
)

// TakeSnapshot assembles one point-in-time view of the account.
//
// prev is the last known snapshot (nil on a true first run). Per-section and
// per-entity failures degrade to the previous state rather than to absence:
// a DM channel whose history fetch fails keeps its prior thread, a failed
// voice probe keeps the user's prior voice state. Dropping an entity on a
// transient error would make the differ re-announce it once the API
// recovers. Only a failure to list relationships aborts the poll, since a
// friends-less snapshot would look like everyone got removed.
func (c *Client) TakeSnapshot(ctx context.Context, now time.Time, prev *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	if c.me == nil {
		return nil, errors.New("not logged in")
	}
	if prev == nil {
		prev = snapshot.New(now)
	}

	snap := snapshot.New(now)

	if err := c.collectFriends(ctx, snap); err != nil {
		return nil, err
	}
	c.collectGuilds(ctx, snap, prev)
	c.collectDMs(ctx, snap, prev)
	c.collectVoice(ctx, snap, prev)

	return snap, nil
}

func (c *Client) collectFriends(ctx context.Context, snap *snapshot.Snapshot) error {
	var rels []relationship
	if err := c.getJSON(ctx, "/users/@me/relationships", &rels); err != nil {
		return fmt.Errorf("relationships: %w", err)
	}

	for _, r := range rels {
		if r.Type != relationshipFriend || r.User.ID == "" {
			continue
		}
		status := "offline"
		if r.Presence != nil && r.Presence.Status != "" {
			status = r.Presence.Status
		}
		snap.Friends[r.User.ID] = snapshot.FriendState{
			Username:   displayName(r.User),
			AvatarHash: r.User.Avatar,
			Status:     status,
			Friend:     true,
		}
	}

	// Tracked users join the friends map even without a friend relationship
	// so profile changes keep being observed after a removal.
	for _, uid := range c.cfg.TrackedUsers {
		id := formatID(uid)
		if prev, ok := snap.Friends[id]; ok {
			// Enrich tracked friends with their bio hash.
			if bio := c.fetchBioHash(ctx, id); bio != "" {
				prev.BioHash = bio
				snap.Friends[id] = prev
			}
			continue
		}
		var u wireUser
		if err := c.getJSON(ctx, "/users/"+id, &u); err != nil {
			c.log.Warn("tracked user fetch failed", logx.String("user_id", id), logx.Err(err))
			continue
		}
		snap.Friends[id] = snapshot.FriendState{
			Username:   displayName(u),
			AvatarHash: u.Avatar,
			BioHash:    c.fetchBioHash(ctx, id),
			Status:     "offline",
			Friend:     false,
		}
	}
	return nil
}

func (c *Client) fetchBioHash(ctx context.Context, id string) string {
	var p userProfile
	if err := c.getJSON(ctx, "/users/"+id+"/profile?with_mutual_guilds=false", &p); err != nil {
		if !errors.Is(err, errNotFound) {
			c.log.Debug("profile fetch failed", logx.String("user_id", id), logx.Err(err))
		}
		return ""
	}
	if p.User.Bio == "" {
		return ""
	}
	return hashContent(p.User.Bio)
}

func (c *Client) collectGuilds(ctx context.Context, snap, prev *snapshot.Snapshot) {
	var guilds []wireGuild
	if err := c.getJSON(ctx, "/users/@me/guilds", &guilds); err != nil {
		c.log.Warn("guild list failed", logx.Err(err))
		snap.GuildCount = prev.GuildCount
		return
	}
	snap.GuildCount = len(guilds)
	c.guildNames = map[string]string{}
	for _, g := range guilds {
		c.guildNames[g.ID] = g.Name
	}
}

func (c *Client) collectDMs(ctx context.Context, snap, prev *snapshot.Snapshot) {
	var channels []wireChannel
	if err := c.getJSON(ctx, "/users/@me/channels", &channels); err != nil {
		c.log.Warn("dm channel list failed", logx.Err(err))
		for id, t := range prev.DMs {
			snap.DMs[id] = t
		}
		return
	}

	for _, ch := range channels {
		if ch.Type != channelDM && ch.Type != channelGroupDM {
			continue
		}
		thread, err := c.fetchThread(ctx, ch)
		if err != nil {
			c.log.Warn("dm history fetch failed", logx.String("channel_id", ch.ID), logx.Err(err))
			if pt, ok := prev.DMs[ch.ID]; ok {
				snap.DMs[ch.ID] = pt
			}
			continue
		}
		snap.DMs[ch.ID] = thread
	}
}

func (c *Client) fetchThread(ctx context.Context, ch wireChannel) (snapshot.DMThread, error) {
	thread := snapshot.DMThread{
		LastMessageID: ch.LastMessageID,
		Messages:      map[string]snapshot.DMMessage{},
	}
	if len(ch.Recipients) > 0 {
		thread.With = displayName(ch.Recipients[0])
	}

	var msgs []wireMessage
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", ch.ID, messageFetchLimit)
	if err := c.getJSON(ctx, path, &msgs); err != nil {
		return thread, err
	}

	for _, m := range msgs {
		if m.Author.ID == "" || m.Author.ID == c.me.ID {
			continue
		}
		content := m.Content
		if len(m.Attachments) > 0 {
			content += fmt.Sprintf("\n[%d attachment(s)]", len(m.Attachments))
		}
		var attachments []snapshot.Attachment
		for _, a := range m.Attachments {
			if a.URL == "" {
				continue
			}
			attachments = append(attachments, snapshot.Attachment{URL: a.URL, Filename: a.Filename})
		}
		reactions := 0
		for _, r := range m.Reactions {
			reactions += r.Count
		}
		sentAt, _ := time.Parse(time.RFC3339, m.Timestamp)
		thread.Messages[m.ID] = snapshot.DMMessage{
			Author:      displayName(m.Author),
			AuthorID:    m.Author.ID,
			Content:     content,
			ContentHash: hashContent(m.Content),
			Edited:      m.EditedTimestamp != "",
			Reactions:   reactions,
			Attachments: attachments,
			SentAt:      sentAt,
		}
		if thread.LastMessageID == "" || lessSnowflake(thread.LastMessageID, m.ID) {
			thread.LastMessageID = m.ID
		}
	}
	return thread, nil
}

// collectVoice probes per-user voice state for every tracked guild. The REST
// surface has no channel roster, so co-occupants are limited to other
// tracked users found in the same channel.
//
// A 404 is a definitive "not in voice"; any other probe failure keeps the
// user's previous voice state so a transient error cannot fabricate a
// leave/join pair.
func (c *Client) collectVoice(ctx context.Context, snap, prev *snapshot.Snapshot) {
	if len(c.cfg.TrackedUsers) == 0 || len(c.cfg.TrackedGuilds) == 0 {
		return
	}

	type located struct {
		userID    string
		state     wireVoiceState
		guildName string
	}
	var found []located
	failed := map[string]bool{}

	for _, gid := range c.cfg.TrackedGuilds {
		guildID := formatID(gid)
		for _, uid := range c.cfg.TrackedUsers {
			userID := formatID(uid)
			var vs wireVoiceState
			err := c.getJSON(ctx, "/guilds/"+guildID+"/voice-states/"+userID, &vs)
			if errors.Is(err, errNotFound) {
				continue // not in voice in this guild
			}
			if err != nil {
				c.log.Debug("voice state probe failed",
					logx.String("guild_id", guildID), logx.String("user_id", userID), logx.Err(err))
				failed[userID] = true
				continue
			}
			if vs.ChannelID == "" {
				continue
			}
			vs.GuildID = guildID
			found = append(found, located{userID: userID, state: vs, guildName: c.guildNames[guildID]})
		}
	}

	for _, f := range found {
		var occupants []string
		names := map[string]string{}
		for _, other := range found {
			if other.userID == f.userID || other.state.ChannelID != f.state.ChannelID {
				continue
			}
			occupants = append(occupants, other.userID)
			if fs, ok := snap.Friends[other.userID]; ok {
				names[other.userID] = fs.Username
			}
		}
		sort.Strings(occupants)

		snap.Voice[f.userID] = snapshot.VoiceState{
			ChannelID:   f.state.ChannelID,
			ChannelName: c.channelName(ctx, f.state.ChannelID),
			GuildID:     f.state.GuildID,
			GuildName:   f.guildName,
			Occupants:   occupants,
			Names:       names,
		}
	}

	for userID := range failed {
		if _, ok := snap.Voice[userID]; ok {
			continue // located in another guild
		}
		if pv, ok := prev.Voice[userID]; ok {
			snap.Voice[userID] = pv
		}
	}
}

func (c *Client) channelName(ctx context.Context, id string) string {
	var ch struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/channels/"+id, &ch); err != nil {
		return ""
	}
	return ch.Name
}

func displayName(u wireUser) string {
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

func hashContent(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64())
}

// lessSnowflake compares decimal snowflake ids numerically.
func lessSnowflake(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
