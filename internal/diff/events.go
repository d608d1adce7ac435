package diff

import (
	"time"

	"github.com/aurumco/ryde/internal/snapshot"
)

// Kind enumerates the change event taxonomy. Friend additions are
// deliberately absent: only removals are reported.
type Kind int

const (
	KindPresenceChanged Kind = iota
	KindProfileChanged
	KindVoiceJoined
	KindVoiceLeft
	KindVoiceMembersChanged
	KindDMReceived
	KindDMEdited
	KindDMDeleted
	KindDMReactionAdded
	KindFriendRemoved
)

func (k Kind) String() string {
	switch k {
	case KindPresenceChanged:
		return "presence_changed"
	case KindProfileChanged:
		return "profile_changed"
	case KindVoiceJoined:
		return "voice_joined"
	case KindVoiceLeft:
		return "voice_left"
	case KindVoiceMembersChanged:
		return "voice_members_changed"
	case KindDMReceived:
		return "dm_received"
	case KindDMEdited:
		return "dm_edited"
	case KindDMDeleted:
		return "dm_deleted"
	case KindDMReactionAdded:
		return "dm_reaction_added"
	case KindFriendRemoved:
		return "friend_removed"
	default:
		return "unknown"
	}
}

// Priority orders events of the same entity within a cycle:
// presence < profile < voice < DM < removal.
func (k Kind) Priority() int {
	switch k {
	case KindPresenceChanged:
		return 0
	case KindProfileChanged:
		return 1
	case KindVoiceJoined, KindVoiceLeft, KindVoiceMembersChanged:
		return 2
	case KindDMReceived, KindDMEdited, KindDMDeleted, KindDMReactionAdded:
		return 3
	case KindFriendRemoved:
		return 4
	default:
		return 5
	}
}

// IsVoice reports whether the kind belongs to the voice category, which is
// what extends the session window.
func (k Kind) IsVoice() bool {
	switch k {
	case KindVoiceJoined, KindVoiceLeft, KindVoiceMembersChanged:
		return true
	default:
		return false
	}
}

type Member struct {
	ID       string
	Username string
}

// Event is one detected change. Only the fields relevant to Kind are set.
// Events are transient: produced and consumed within a single run.
type Event struct {
	Kind     Kind
	EntityID string // user id (friends/voice) or DM channel id
	At       time.Time

	Username string // subject display name

	// presence / profile
	Field string // "avatar" | "username" | "bio"
	Old   string
	New   string

	// voice
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string
	Occupants   []Member // co-occupants (join) or newly present (members changed)

	// dm
	MessageID   string
	AuthorID    string
	Content     string
	Reactions   int
	Attachments []snapshot.Attachment
}

// SkippedEntity records a per-entity failure that did not abort the diff.
type SkippedEntity struct {
	Domain string // "friend" | "voice" | "dm"
	ID     string
	Reason string
}

// Result is the output of one diff cycle.
type Result struct {
	Events  []Event
	Skipped []SkippedEntity
}
