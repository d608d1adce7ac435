package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aurumco/ryde/internal/diff"
	"github.com/aurumco/ryde/internal/snapshot"
)

// Message is one rendered notification. Text is Telegram HTML. When PhotoURL
// is set the text rides along as the photo caption; Media are sent after the
// message, one send each.
type Message struct {
	Text     string
	PhotoURL string
	Media    []snapshot.Attachment
}

// Text wraps a plain HTML string as a Message.
func Text(s string) Message { return Message{Text: s} }

// Formatter renders change events as Telegram HTML messages. The timezone
// is purely presentational: it never influences diffing or ordering.
type Formatter struct {
	loc *time.Location
}

func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

var statusEmoji = map[string]string{
	"online": "🟢",
	"idle":   "🌙",
	"dnd":    "🔴",
}

// Format renders one event. The templates follow the house style: emoji
// header, bullet lines, profile/channel links, short local timestamps.
func (f *Formatter) Format(ev diff.Event) Message {
	ts := f.shortTime(ev.At)
	es := html.EscapeString
	name := cleanUsername(ev.Username)

	switch ev.Kind {
	case diff.KindPresenceChanged:
		emoji, ok := statusEmoji[strings.ToLower(ev.New)]
		if !ok {
			emoji = "🟢"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<b>%s Status Change</b>\n\n", emoji)
		fmt.Fprintf(&b, "• <b>User:</b> %s\n", userLink(ev.EntityID, name))
		fmt.Fprintf(&b, "• <b>Status:</b> %s\n", es(ev.New))
		fmt.Fprintf(&b, "• <b>Time:</b> %s", es(ts))
		return Text(b.String())

	case diff.KindProfileChanged:
		var b strings.Builder
		b.WriteString("<b>👤 Profile Updated</b>\n\n")
		fmt.Fprintf(&b, "• <b>User:</b> %s\n", userLink(ev.EntityID, name))
		fmt.Fprintf(&b, "• <b>Changed:</b> %s\n", es(ev.Field))
		fmt.Fprintf(&b, "• <b>Time:</b> %s\n\n", es(ts))
		fmt.Fprintf(&b, "• <b>Old:</b> %s\n", es(orNone(cleanUsername(ev.Old))))
		fmt.Fprintf(&b, "• <b>New:</b> %s", es(orNone(cleanUsername(ev.New))))
		msg := Text(b.String())
		if ev.Field == "avatar" && ev.New != "" {
			// New avatar rides along as the photo, text as caption.
			msg.PhotoURL = avatarURL(ev.EntityID, ev.New)
		}
		return msg

	case diff.KindFriendRemoved:
		var b strings.Builder
		b.WriteString("<b>💔 Friend Removed</b>\n\n")
		fmt.Fprintf(&b, "• <b>User:</b> %s\n", es(name))
		fmt.Fprintf(&b, "• <b>Time:</b> %s", es(ts))
		return Text(b.String())

	case diff.KindVoiceJoined, diff.KindVoiceLeft, diff.KindVoiceMembersChanged:
		emoji := "🔊"
		if ev.Kind == diff.KindVoiceLeft {
			emoji = "🔇"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "<b>%s Voice Channel</b>\n\n", emoji)
		fmt.Fprintf(&b, "• <b>User:</b> %s\n", userLink(ev.EntityID, name))
		fmt.Fprintf(&b, "• <b>Channel:</b> %s\n", channelLink(ev))
		fmt.Fprintf(&b, "• <b>Server:</b> %s\n", es(ev.GuildName))
		fmt.Fprintf(&b, "• <b>Time:</b> %s", es(ts))
		if len(ev.Occupants) > 0 {
			label := "With"
			if ev.Kind == diff.KindVoiceMembersChanged {
				label = "Joined"
			}
			links := make([]string, 0, len(ev.Occupants))
			for _, m := range ev.Occupants {
				links = append(links, userLink(m.ID, cleanUsername(m.Username)))
			}
			fmt.Fprintf(&b, "\n\n• <b>%s:</b> %s", label, strings.Join(links, ", "))
		}
		return Text(b.String())

	case diff.KindDMReceived:
		var b strings.Builder
		b.WriteString("<b>📩 New DM</b>\n\n")
		fmt.Fprintf(&b, "• <b>From:</b> %s\n", userLink(ev.AuthorID, name))
		fmt.Fprintf(&b, "• <b>Time:</b> %s\n\n", messageLink(ev, ts))
		b.WriteString(es(orEmptyContent(ev.Content)))
		return Message{Text: b.String(), Media: ev.Attachments}

	case diff.KindDMEdited:
		var b strings.Builder
		b.WriteString("<b>✏️ Message Edited</b>\n\n")
		fmt.Fprintf(&b, "• <b>From:</b> %s\n", es(name))
		fmt.Fprintf(&b, "• <b>Time:</b> %s\n\n", es(ts))
		fmt.Fprintf(&b, "• <b>Old:</b> %s\n", es(orEmptyContent(ev.Old)))
		fmt.Fprintf(&b, "• <b>New:</b> %s", es(orEmptyContent(ev.New)))
		return Text(b.String())

	case diff.KindDMDeleted:
		var b strings.Builder
		b.WriteString("<b>🗑️ Message Deleted</b>\n\n")
		fmt.Fprintf(&b, "• <b>From:</b> %s\n", es(name))
		fmt.Fprintf(&b, "• <b>Time:</b> %s\n\n", es(ts))
		fmt.Fprintf(&b, "• <b>Content:</b> %s", es(orEmptyContent(ev.Content)))
		return Text(b.String())

	case diff.KindDMReactionAdded:
		var b strings.Builder
		b.WriteString("<b>👍 Reaction Added</b>\n\n")
		fmt.Fprintf(&b, "• <b>From:</b> %s\n", es(name))
		fmt.Fprintf(&b, "• <b>Reactions:</b> %d\n", ev.Reactions)
		fmt.Fprintf(&b, "• <b>Time:</b> %s\n\n", es(ts))
		fmt.Fprintf(&b, "• <b>Message:</b> %s", es(orEmptyContent(ev.Content)))
		return Text(b.String())

	default:
		return Message{}
	}
}

// FormatStats renders the daily statistics summary.
func (f *Formatter) FormatStats(guildCount, friendTotal int) string {
	return fmt.Sprintf("<b>👤 Statistics</b>\n\n• <b>Total Guilds:</b> %d\n• <b>Total Friends:</b> %d",
		guildCount, friendTotal)
}

// LocalDate is the current date (YYYY-MM-DD) in the formatter's zone, used
// to rate the statistics summary to once per local day.
func (f *Formatter) LocalDate(t time.Time) string {
	return t.In(f.loc).Format("2006-01-02")
}

func (f *Formatter) shortTime(t time.Time) string {
	return t.In(f.loc).Format("01/02 15:04:05")
}

// cleanUsername strips the legacy "#0" discriminator.
func cleanUsername(s string) string {
	return strings.TrimSuffix(s, "#0")
}

func userLink(id, name string) string {
	if id == "" {
		return html.EscapeString(name)
	}
	return fmt.Sprintf(`<a href="https://discord.com/channels/@me/%s">%s</a>`, id, html.EscapeString(name))
}

func channelLink(ev diff.Event) string {
	name := html.EscapeString(ev.ChannelName)
	if ev.GuildID == "" || ev.ChannelID == "" {
		return name
	}
	return fmt.Sprintf(`<a href="https://discord.com/channels/%s/%s">%s</a>`, ev.GuildID, ev.ChannelID, name)
}

func messageLink(ev diff.Event, ts string) string {
	if ev.AuthorID == "" || ev.MessageID == "" {
		return html.EscapeString(ts)
	}
	return fmt.Sprintf(`<a href="https://discord.com/channels/@me/%s/%s">%s</a>`,
		ev.AuthorID, ev.MessageID, html.EscapeString(ts))
}

// avatarURL builds the CDN url for an avatar hash; animated avatars use the
// "a_" hash prefix and a gif.
func avatarURL(userID, hash string) string {
	ext := "png"
	if strings.HasPrefix(hash, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.%s?size=1024", userID, hash, ext)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func orEmptyContent(s string) string {
	if s == "" {
		return "[No text content]"
	}
	return s
}
