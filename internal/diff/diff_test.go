package diff

import (
	"reflect"
	"testing"
	"time"

	"github.com/aurumco/ryde/internal/snapshot"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func snap(mut func(*snapshot.Snapshot)) *snapshot.Snapshot {
	s := snapshot.New(testNow)
	if mut != nil {
		mut(s)
	}
	return s
}

func TestDiffSelfIsEmpty(t *testing.T) {
	t.Parallel()
	s := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "online", Friend: true}
		s.Voice["100"] = snapshot.VoiceState{ChannelID: "5", GuildID: "9", Occupants: []string{"200"}}
		s.DMs["300"] = snapshot.DMThread{
			LastMessageID: "400",
			Messages:      map[string]snapshot.DMMessage{"400": {AuthorID: "100", Author: "alice", ContentHash: "aa"}},
		}
	})
	res := Diff(s, s, testNow)
	if len(res.Events) != 0 {
		t.Fatalf("diff(C, C) = %d events, want 0", len(res.Events))
	}
}

func TestDiffDeterministic(t *testing.T) {
	t.Parallel()
	prev := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "offline", Friend: true}
		s.Friends["200"] = snapshot.FriendState{Username: "bob", Status: "online", AvatarHash: "a1", Friend: true}
		s.Friends["300"] = snapshot.FriendState{Username: "carol", Status: "idle", Friend: true}
	})
	cur := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "online", Friend: true}
		s.Friends["200"] = snapshot.FriendState{Username: "bob", Status: "dnd", AvatarHash: "a2", Friend: true}
	})

	first := Diff(prev, cur, testNow)
	for i := 0; i < 10; i++ {
		again := Diff(prev, cur, testNow)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("diff not deterministic:\nfirst: %+v\nagain: %+v", first, again)
		}
	}

	// entity id ascending, then kind priority within entity
	wantKinds := []Kind{KindPresenceChanged, KindPresenceChanged, KindProfileChanged, KindFriendRemoved}
	wantIDs := []string{"100", "200", "200", "300"}
	if len(first.Events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(first.Events), len(wantKinds), first.Events)
	}
	for i, ev := range first.Events {
		if ev.Kind != wantKinds[i] || ev.EntityID != wantIDs[i] {
			t.Fatalf("event %d = (%s, %s), want (%s, %s)", i, ev.Kind, ev.EntityID, wantKinds[i], wantIDs[i])
		}
	}
}

func TestDiffPresenceScenario(t *testing.T) {
	t.Parallel()
	// Previous snapshot has friend A offline; live has A online and B newly
	// present. Expect exactly one PresenceChanged for A, nothing for B.
	prev := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "A", Status: "offline", Friend: true}
	})
	cur := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "A", Status: "online", Friend: true}
		s.Friends["200"] = snapshot.FriendState{Username: "B", Status: "online", Friend: true}
	})

	res := Diff(prev, cur, testNow)
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
	}
	ev := res.Events[0]
	if ev.Kind != KindPresenceChanged || ev.EntityID != "100" || ev.Old != "offline" || ev.New != "online" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDiffProfileGroups(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		prev, cur snapshot.FriendState
		wantField string
	}{
		{
			name:      "avatar wins over username",
			prev:      snapshot.FriendState{Username: "old", AvatarHash: "h1", Friend: true},
			cur:       snapshot.FriendState{Username: "new", AvatarHash: "h2", Friend: true},
			wantField: "avatar",
		},
		{
			name:      "username",
			prev:      snapshot.FriendState{Username: "old", AvatarHash: "h1", Friend: true},
			cur:       snapshot.FriendState{Username: "new", AvatarHash: "h1", Friend: true},
			wantField: "username",
		},
		{
			name:      "bio",
			prev:      snapshot.FriendState{Username: "same", BioHash: "b1", Friend: true},
			cur:       snapshot.FriendState{Username: "same", BioHash: "b2", Friend: true},
			wantField: "bio",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prev := snap(func(s *snapshot.Snapshot) { s.Friends["100"] = tt.prev })
			cur := snap(func(s *snapshot.Snapshot) { s.Friends["100"] = tt.cur })
			res := Diff(prev, cur, testNow)
			if len(res.Events) != 1 {
				t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
			}
			if res.Events[0].Kind != KindProfileChanged || res.Events[0].Field != tt.wantField {
				t.Fatalf("got (%s, %s), want (profile_changed, %s)", res.Events[0].Kind, res.Events[0].Field, tt.wantField)
			}
		})
	}
}

func TestDiffPresenceAndProfileSameCycle(t *testing.T) {
	t.Parallel()
	prev := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "offline", AvatarHash: "h1", Friend: true}
	})
	cur := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "online", AvatarHash: "h2", Friend: true}
	})
	res := Diff(prev, cur, testNow)
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(res.Events), res.Events)
	}
	if res.Events[0].Kind != KindPresenceChanged || res.Events[1].Kind != KindProfileChanged {
		t.Fatalf("wrong order: %s then %s", res.Events[0].Kind, res.Events[1].Kind)
	}
}

func TestDiffFriendRemoved(t *testing.T) {
	t.Parallel()
	prev := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Friend: true}
		s.Friends["200"] = snapshot.FriendState{Username: "tracked", Friend: false}
	})

	t.Run("entity gone", func(t *testing.T) {
		res := Diff(prev, snap(nil), testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindFriendRemoved || res.Events[0].EntityID != "100" {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})

	t.Run("relationship flag dropped", func(t *testing.T) {
		cur := snap(func(s *snapshot.Snapshot) {
			s.Friends["100"] = snapshot.FriendState{Username: "alice", Friend: false}
			s.Friends["200"] = snapshot.FriendState{Username: "tracked", Friend: false}
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindFriendRemoved || res.Events[0].EntityID != "100" {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})
}

func TestDiffVoiceCoOccupants(t *testing.T) {
	t.Parallel()
	// X in channel 5 with {Y}; live has {Y, Z}: exactly one
	// VoiceMembersChanged listing Z, no join/leave for X.
	prev := snap(func(s *snapshot.Snapshot) {
		s.Voice["100"] = snapshot.VoiceState{ChannelID: "5", GuildID: "9", Occupants: []string{"200"}}
	})
	cur := snap(func(s *snapshot.Snapshot) {
		s.Voice["100"] = snapshot.VoiceState{
			ChannelID: "5", GuildID: "9",
			Occupants: []string{"200", "300"},
			Names:     map[string]string{"300": "zed"},
		}
	})

	res := Diff(prev, cur, testNow)
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(res.Events), res.Events)
	}
	ev := res.Events[0]
	if ev.Kind != KindVoiceMembersChanged {
		t.Fatalf("kind = %s, want voice_members_changed", ev.Kind)
	}
	if len(ev.Occupants) != 1 || ev.Occupants[0].ID != "300" || ev.Occupants[0].Username != "zed" {
		t.Fatalf("unexpected occupants: %+v", ev.Occupants)
	}
}

func TestDiffVoiceJoinLeaveMove(t *testing.T) {
	t.Parallel()
	inCh := func(ch string) *snapshot.Snapshot {
		return snap(func(s *snapshot.Snapshot) {
			s.Voice["100"] = snapshot.VoiceState{ChannelID: ch, GuildID: "9"}
		})
	}

	tests := []struct {
		name      string
		prev, cur *snapshot.Snapshot
		want      Kind
	}{
		{name: "join", prev: snap(nil), cur: inCh("5"), want: KindVoiceJoined},
		{name: "leave", prev: inCh("5"), cur: snap(nil), want: KindVoiceLeft},
		{name: "move announced as join", prev: inCh("5"), cur: inCh("6"), want: KindVoiceJoined},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Diff(tt.prev, tt.cur, testNow)
			if len(res.Events) != 1 || res.Events[0].Kind != tt.want {
				t.Fatalf("got %+v, want one %s", res.Events, tt.want)
			}
		})
	}
}

func TestDiffDMs(t *testing.T) {
	t.Parallel()
	base := func() snapshot.DMThread {
		return snapshot.DMThread{
			LastMessageID: "400",
			Messages: map[string]snapshot.DMMessage{
				"400": {Author: "alice", AuthorID: "100", Content: "hi", ContentHash: "h1"},
			},
		}
	}

	t.Run("received", func(t *testing.T) {
		t.Parallel()
		prev := snap(func(s *snapshot.Snapshot) { s.DMs["300"] = base() })
		cur := snap(func(s *snapshot.Snapshot) {
			th := base()
			th.Messages["401"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", Content: "new", ContentHash: "h2"}
			th.LastMessageID = "401"
			s.DMs["300"] = th
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindDMReceived || res.Events[0].MessageID != "401" {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})

	t.Run("new thread is baselined silently", func(t *testing.T) {
		t.Parallel()
		// A thread absent from an initialized previous snapshot carries up
		// to a full fetch window of history; none of it is announced.
		prev := snap(func(s *snapshot.Snapshot) {
			s.Friends["100"] = snapshot.FriendState{Username: "alice", Friend: true}
		})
		cur := snap(func(s *snapshot.Snapshot) {
			s.Friends["100"] = snapshot.FriendState{Username: "alice", Friend: true}
			s.DMs["300"] = base()
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 0 {
			t.Fatalf("unexpected events: %+v", res.Events)
		}

		// Once recorded, the next message in the thread is reported.
		next := snap(func(s *snapshot.Snapshot) {
			s.Friends["100"] = snapshot.FriendState{Username: "alice", Friend: true}
			th := base()
			th.Messages["401"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", Content: "new", ContentHash: "h2"}
			th.LastMessageID = "401"
			s.DMs["300"] = th
		})
		res = Diff(cur, next, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindDMReceived || res.Events[0].MessageID != "401" {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})

	t.Run("reappearing thread does not replay history", func(t *testing.T) {
		t.Parallel()
		// Thread vanishes for one cycle (as after a degraded poll), then
		// comes back with the same messages: nothing is re-announced.
		withThread := snap(func(s *snapshot.Snapshot) {
			th := base()
			th.Messages["401"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", Content: "also seen", ContentHash: "h2"}
			th.LastMessageID = "401"
			s.DMs["300"] = th
		})
		withoutThread := snap(nil)

		if res := Diff(withThread, withoutThread, testNow); len(res.Events) != 0 {
			t.Fatalf("thread absence produced events: %+v", res.Events)
		}
		if res := Diff(withoutThread, withThread, testNow); len(res.Events) != 0 {
			t.Fatalf("thread reappearance replayed history: %+v", res.Events)
		}
	})

	t.Run("old pruned message is not re-reported", func(t *testing.T) {
		t.Parallel()
		prev := snap(func(s *snapshot.Snapshot) { s.DMs["300"] = base() })
		cur := snap(func(s *snapshot.Snapshot) {
			th := base()
			// id below LastMessageID: seen long ago, pruned from prev
			th.Messages["399"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", Content: "old", ContentHash: "h0"}
			s.DMs["300"] = th
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 0 {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})

	t.Run("edited", func(t *testing.T) {
		t.Parallel()
		prev := snap(func(s *snapshot.Snapshot) { s.DMs["300"] = base() })
		cur := snap(func(s *snapshot.Snapshot) {
			th := base()
			th.Messages["400"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", Content: "hi!", ContentHash: "h9", Edited: true}
			s.DMs["300"] = th
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindDMEdited {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
		if res.Events[0].Old != "hi" || res.Events[0].New != "hi!" {
			t.Fatalf("old/new = %q/%q", res.Events[0].Old, res.Events[0].New)
		}
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()
		prev := snap(func(s *snapshot.Snapshot) { s.DMs["300"] = base() })
		cur := snap(func(s *snapshot.Snapshot) {
			th := base()
			th.Messages["400"] = snapshot.DMMessage{Author: "alice", AuthorID: "100", ContentHash: "h1", Deleted: true}
			s.DMs["300"] = th
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindDMDeleted {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
		if res.Events[0].Content != "hi" {
			t.Fatalf("deleted content = %q, want previous content", res.Events[0].Content)
		}
	})

	t.Run("reaction added", func(t *testing.T) {
		t.Parallel()
		prev := snap(func(s *snapshot.Snapshot) { s.DMs["300"] = base() })
		cur := snap(func(s *snapshot.Snapshot) {
			th := base()
			m := th.Messages["400"]
			m.Reactions = 2
			th.Messages["400"] = m
			s.DMs["300"] = th
		})
		res := Diff(prev, cur, testNow)
		if len(res.Events) != 1 || res.Events[0].Kind != KindDMReactionAdded || res.Events[0].Reactions != 2 {
			t.Fatalf("unexpected events: %+v", res.Events)
		}
	})
}

func TestDiffSkipsMalformedEntities(t *testing.T) {
	t.Parallel()
	prev := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "offline", Friend: true}
	})
	cur := snap(func(s *snapshot.Snapshot) {
		s.Friends["100"] = snapshot.FriendState{Username: "alice", Status: "online", Friend: true}
		s.Friends["200"] = snapshot.FriendState{} // missing username
		s.Voice["300"] = snapshot.VoiceState{}    // missing channel id
	})

	res := Diff(prev, cur, testNow)
	if len(res.Events) != 1 || res.Events[0].EntityID != "100" {
		t.Fatalf("malformed entries must not abort the diff: %+v", res.Events)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("got %d skipped, want 2: %+v", len(res.Skipped), res.Skipped)
	}
}

func TestLessID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want bool
	}{
		{"9", "10", true},
		{"10", "9", false},
		{"100", "200", true},
		{"200", "200", false},
	}
	for _, tt := range tests {
		if got := lessID(tt.a, tt.b); got != tt.want {
			t.Fatalf("lessID(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
