package snapshot

import "time"

// CurrentVersion is the schema version written by this build. Loaders must
// reject documents with an unknown version instead of misparsing them.
const CurrentVersion = 1

// Snapshot is one point-in-time view of everything the monitor observes.
// Entity maps are keyed by decimal Discord snowflake ids.
//
// A Snapshot value is treated as immutable once taken; the orchestrator
// replaces it wholesale rather than mutating entries in place.
type Snapshot struct {
	Version int       `json:"version"`
	TakenAt time.Time `json:"taken_at"`

	// Friends is keyed by user id and includes tracked non-friends.
	Friends map[string]FriendState `json:"friends,omitempty"`

	// Voice is keyed by tracked user id.
	Voice map[string]VoiceState `json:"voice,omitempty"`

	// DMs is keyed by private channel id.
	DMs map[string]DMThread `json:"dms,omitempty"`

	// LastStatsDate is the local date (YYYY-MM-DD) the daily statistics
	// summary was last sent.
	LastStatsDate string `json:"last_stats_date,omitempty"`

	GuildCount int `json:"guild_count,omitempty"`
}

// New returns an empty snapshot at the current schema version.
func New(takenAt time.Time) *Snapshot {
	return &Snapshot{
		Version: CurrentVersion,
		TakenAt: takenAt,
		Friends: map[string]FriendState{},
		Voice:   map[string]VoiceState{},
		DMs:     map[string]DMThread{},
	}
}

type FriendState struct {
	Username   string `json:"username"`
	AvatarHash string `json:"avatar,omitempty"`
	BioHash    string `json:"bio,omitempty"`
	Status     string `json:"status,omitempty"` // online / idle / dnd / offline
	Friend     bool   `json:"friend"`           // false for tracked non-friends
}

type VoiceState struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name,omitempty"`
	GuildID     string `json:"guild_id"`
	GuildName   string `json:"guild_name,omitempty"`

	// Occupants are co-occupant user ids, sorted, excluding the subject.
	Occupants []string `json:"occupants,omitempty"`

	// Names maps occupant id -> display name for message rendering.
	Names map[string]string `json:"names,omitempty"`
}

type DMThread struct {
	// LastMessageID is the newest message id seen in the channel, kept even
	// after old Messages entries are pruned so already-seen messages are
	// never re-reported.
	LastMessageID string `json:"last_message_id,omitempty"`

	With string `json:"with,omitempty"` // counterpart display name

	Messages map[string]DMMessage `json:"messages,omitempty"`
}

type DMMessage struct {
	Author      string       `json:"author"`
	AuthorID    string       `json:"author_id"`
	Content     string       `json:"content,omitempty"`
	ContentHash string       `json:"content_hash"`
	Edited      bool         `json:"edited,omitempty"`
	Deleted     bool         `json:"deleted,omitempty"`
	Reactions   int          `json:"reactions,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	SentAt      time.Time    `json:"sent_at"`
}

// Attachment is a file carried by a DM message, forwarded to the chat after
// the text notification.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}
