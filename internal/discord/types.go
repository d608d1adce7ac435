package discord

// Wire shapes for the subset of the Discord v9 API the monitor reads.
// Only fields the snapshot needs are declared; everything else is ignored.

type Me struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

const relationshipFriend = 1

type relationship struct {
	ID       string    `json:"id"`
	Type     int       `json:"type"`
	User     wireUser  `json:"user"`
	Presence *presence `json:"presence,omitempty"`
}

type wireUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Bio           string `json:"bio,omitempty"`
}

// presence is only present on API variants that inline it; when absent the
// snapshot records "offline" and the differ treats it like any other status.
type presence struct {
	Status string `json:"status"`
}

type userProfile struct {
	User wireUser `json:"user"`
}

const (
	channelDM      = 1
	channelGroupDM = 3
)

type wireChannel struct {
	ID            string     `json:"id"`
	Type          int        `json:"type"`
	LastMessageID string     `json:"last_message_id"`
	Recipients    []wireUser `json:"recipients"`
}

type wireMessage struct {
	ID              string         `json:"id"`
	Author          wireUser       `json:"author"`
	Content         string         `json:"content"`
	Timestamp       string         `json:"timestamp"`
	EditedTimestamp string         `json:"edited_timestamp"`
	Reactions       []wireReaction `json:"reactions"`
	Attachments     []wireAttachment `json:"attachments"`
}

type wireAttachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type wireReaction struct {
	Count int `json:"count"`
}

type wireGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireVoiceState struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
}
