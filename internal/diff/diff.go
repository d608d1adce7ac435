// Package diff computes change events between two state snapshots.
//
// Diff is a pure function: identical inputs produce identical, identically
// ordered output. All ordering is done on timezone-independent ids and
// priorities so presentation concerns can never affect it.
package diff

import (
	"sort"
	"time"

	"github.com/aurumco/ryde/internal/snapshot"
)

// Diff compares two snapshots and returns the ordered change events.
//
// First-run baseline suppression is the caller's job: when the previous
// snapshot is uninitialized the caller must persist the live view silently
// instead of calling Diff. Here both arguments are treated as initialized;
// nil is an empty snapshot.
func Diff(prev, cur *snapshot.Snapshot, now time.Time) Result {
	if prev == nil {
		prev = snapshot.New(now)
	}
	if cur == nil {
		cur = snapshot.New(now)
	}

	var res Result
	diffFriends(prev, cur, now, &res)
	diffVoice(prev, cur, now, &res)
	diffDMs(prev, cur, now, &res)

	SortEvents(res.Events)
	return res
}

// SortEvents applies the canonical notification order: entity id ascending
// (numeric snowflake order), then kind priority, then message id.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.EntityID != b.EntityID {
			return lessID(a.EntityID, b.EntityID)
		}
		if a.Kind.Priority() != b.Kind.Priority() {
			return a.Kind.Priority() < b.Kind.Priority()
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return lessID(a.MessageID, b.MessageID)
	})
}

func diffFriends(prev, cur *snapshot.Snapshot, now time.Time, res *Result) {
	for id, c := range cur.Friends {
		if c.Username == "" {
			res.Skipped = append(res.Skipped, SkippedEntity{Domain: "friend", ID: id, Reason: "missing username"})
			continue
		}
		p, seen := prev.Friends[id]
		if !seen {
			// New friends are not announced; only removals are explicit.
			continue
		}

		if p.Status != c.Status {
			res.Events = append(res.Events, Event{
				Kind:     KindPresenceChanged,
				EntityID: id,
				At:       now,
				Username: c.Username,
				Old:      p.Status,
				New:      c.Status,
			})
		}

		// Profile fields form one semantic group: report the most visible
		// changed field, avatar first, the way the original notifier did.
		switch {
		case p.AvatarHash != c.AvatarHash:
			res.Events = append(res.Events, profileEvent(id, c.Username, "avatar", p.AvatarHash, c.AvatarHash, now))
		case p.Username != c.Username:
			res.Events = append(res.Events, profileEvent(id, c.Username, "username", p.Username, c.Username, now))
		case p.BioHash != c.BioHash:
			res.Events = append(res.Events, profileEvent(id, c.Username, "bio", p.BioHash, c.BioHash, now))
		}

		if p.Friend && !c.Friend {
			res.Events = append(res.Events, Event{
				Kind:     KindFriendRemoved,
				EntityID: id,
				At:       now,
				Username: c.Username,
			})
		}
	}

	for id, p := range prev.Friends {
		if _, still := cur.Friends[id]; still || !p.Friend {
			continue
		}
		res.Events = append(res.Events, Event{
			Kind:     KindFriendRemoved,
			EntityID: id,
			At:       now,
			Username: p.Username,
		})
	}
}

func profileEvent(id, username, field, old, new string, now time.Time) Event {
	return Event{
		Kind:     KindProfileChanged,
		EntityID: id,
		At:       now,
		Username: username,
		Field:    field,
		Old:      old,
		New:      new,
	}
}

func diffVoice(prev, cur *snapshot.Snapshot, now time.Time, res *Result) {
	for id, c := range cur.Voice {
		if c.ChannelID == "" {
			res.Skipped = append(res.Skipped, SkippedEntity{Domain: "voice", ID: id, Reason: "missing channel id"})
			continue
		}
		username := subjectName(prev, cur, id)
		p, was := prev.Voice[id]

		switch {
		case !was, p.ChannelID != c.ChannelID:
			// Fresh join, or a move announced as a join of the new channel.
			res.Events = append(res.Events, Event{
				Kind:        KindVoiceJoined,
				EntityID:    id,
				At:          now,
				Username:    username,
				ChannelID:   c.ChannelID,
				ChannelName: c.ChannelName,
				GuildID:     c.GuildID,
				GuildName:   c.GuildName,
				Occupants:   members(c, c.Occupants),
			})
		default:
			// Same channel: report only newly present co-occupants.
			joined := setDiff(c.Occupants, p.Occupants)
			if len(joined) > 0 {
				res.Events = append(res.Events, Event{
					Kind:        KindVoiceMembersChanged,
					EntityID:    id,
					At:          now,
					Username:    username,
					ChannelID:   c.ChannelID,
					ChannelName: c.ChannelName,
					GuildID:     c.GuildID,
					GuildName:   c.GuildName,
					Occupants:   members(c, joined),
				})
			}
		}
	}

	for id, p := range prev.Voice {
		if _, still := cur.Voice[id]; still {
			continue
		}
		res.Events = append(res.Events, Event{
			Kind:        KindVoiceLeft,
			EntityID:    id,
			At:          now,
			Username:    subjectName(prev, cur, id),
			ChannelID:   p.ChannelID,
			ChannelName: p.ChannelName,
			GuildID:     p.GuildID,
			GuildName:   p.GuildName,
		})
	}
}

func diffDMs(prev, cur *snapshot.Snapshot, now time.Time, res *Result) {
	for chID, c := range cur.DMs {
		p, threadSeen := prev.DMs[chID]
		if !threadSeen {
			// A thread we have never recorded carries up to a full fetch
			// window of history; announcing it would replay old messages.
			// It is baselined silently and diffed from the next cycle on.
			continue
		}

		for msgID, m := range c.Messages {
			if m.AuthorID == "" {
				res.Skipped = append(res.Skipped, SkippedEntity{Domain: "dm", ID: msgID, Reason: "missing author"})
				continue
			}

			pm, seen := p.Messages[msgID]
			if !seen {
				// Absent from the previous thread: new only if it is newer
				// than the last id we had recorded, otherwise it was pruned.
				if p.LastMessageID != "" && !lessID(p.LastMessageID, msgID) {
					continue
				}
				res.Events = append(res.Events, Event{
					Kind:        KindDMReceived,
					EntityID:    chID,
					At:          now,
					Username:    m.Author,
					AuthorID:    m.AuthorID,
					MessageID:   msgID,
					Content:     m.Content,
					Attachments: m.Attachments,
				})
				continue
			}

			if m.Deleted && !pm.Deleted {
				res.Events = append(res.Events, Event{
					Kind:      KindDMDeleted,
					EntityID:  chID,
					At:        now,
					Username:  pm.Author,
					AuthorID:  pm.AuthorID,
					MessageID: msgID,
					Content:   pm.Content,
				})
			} else if m.ContentHash != pm.ContentHash || (m.Edited && !pm.Edited) {
				res.Events = append(res.Events, Event{
					Kind:      KindDMEdited,
					EntityID:  chID,
					At:        now,
					Username:  m.Author,
					AuthorID:  m.AuthorID,
					MessageID: msgID,
					Old:       pm.Content,
					New:       m.Content,
					Content:   m.Content,
				})
			}

			if m.Reactions > pm.Reactions {
				res.Events = append(res.Events, Event{
					Kind:      KindDMReactionAdded,
					EntityID:  chID,
					At:        now,
					Username:  m.Author,
					AuthorID:  m.AuthorID,
					MessageID: msgID,
					Content:   m.Content,
					Reactions: m.Reactions,
				})
			}
		}
		// Messages present before but absent now were pruned, not deleted:
		// deletions are carried by the Deleted flag, absence is not an event.
	}
}

func subjectName(prev, cur *snapshot.Snapshot, id string) string {
	if f, ok := cur.Friends[id]; ok && f.Username != "" {
		return f.Username
	}
	if f, ok := prev.Friends[id]; ok && f.Username != "" {
		return f.Username
	}
	return id
}

func members(v snapshot.VoiceState, ids []string) []Member {
	out := make([]Member, 0, len(ids))
	for _, id := range ids {
		name := v.Names[id]
		if name == "" {
			name = id
		}
		out = append(out, Member{ID: id, Username: name})
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i].ID, out[j].ID) })
	return out
}

// setDiff returns ids present in a but not in b.
func setDiff(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// lessID compares decimal snowflake ids numerically without parsing: a
// shorter decimal string is always the smaller number.
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
