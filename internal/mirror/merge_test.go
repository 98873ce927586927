package mirror

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testState() *State {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewState(logrus.NewEntry(logger))
}

func snapshotJSON(t *testing.T, chats map[string]snapshotChat) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"user_id":       1,
		"cluster_token": "cluster-tok",
		"chats":         chats,
		"users":         []Peer{{UserID: 1, About: "laptop"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// resolvedChat seeds a chat that already round-tripped to the server.
func resolvedChat(s *State, publicID uint, name string, messages ...Message) int64 {
	h := s.CreateChat(name)
	s.Resolve(h.LocalID, publicID)
	for _, m := range messages {
		s.mu.Lock()
		e := s.chats[h.LocalID]
		e.chat.Messages = append(e.chat.Messages, m)
		s.mu.Unlock()
	}
	return h.LocalID
}

func userMsg(userID uint, text string) Message {
	return Message{UserSent: &userID, Text: text, Time: time.Now()}
}

func TestMergeKeepsLocalWhenRemoteHasFewer(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "work", userMsg(1, "just sent"))

	raw := snapshotJSON(t, map[string]snapshotChat{
		"10": {Name: "work", Ready: false, Messages: nil},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	chat, ok := s.ChatByLocal(localID)
	if !ok {
		t.Fatal("chat disappeared")
	}
	if len(chat.Messages) != 1 || chat.Messages[0].Text != "just sent" {
		t.Errorf("optimistic message lost: %+v", chat.Messages)
	}
	if chat.Ready {
		t.Error("ready flag must come from the server")
	}
}

func TestMergeReplacesWhenRemoteHasAtLeastAsMany(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "work", userMsg(1, "local copy"))

	raw := snapshotJSON(t, map[string]snapshotChat{
		"10": {Name: "work", Ready: true, Messages: []Message{
			userMsg(1, "server copy"),
			{Text: "agent answer", Time: time.Now()},
		}},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	chat, _ := s.ChatByLocal(localID)
	if len(chat.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(chat.Messages))
	}
	if chat.Messages[0].Text != "server copy" {
		t.Errorf("messages not replaced by server version: %+v", chat.Messages)
	}
	if chat.Messages[1].UserSent != nil {
		t.Error("agent message should have nil author")
	}
}

func TestMergeRemovesChatAbsentFromSnapshot(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "old")
	resolvedChat(s, 11, "kept")

	raw := snapshotJSON(t, map[string]snapshotChat{
		"11": {Name: "kept", Ready: true},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if _, ok := s.ChatByLocal(localID); ok {
		t.Error("chat absent from snapshot should be removed")
	}
	if len(s.Chats()) != 1 {
		t.Errorf("chats = %d, want 1", len(s.Chats()))
	}
}

func TestMergeLeavesTentativeChatsAlone(t *testing.T) {
	s := testState()
	h := s.CreateChat("pending")
	s.AppendLocal(h.LocalID, 1, "first message")

	raw := snapshotJSON(t, map[string]snapshotChat{})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	chat, ok := s.ChatByLocal(h.LocalID)
	if !ok {
		t.Fatal("tentative chat must survive a merge")
	}
	if len(chat.Messages) != 1 {
		t.Errorf("tentative chat messages = %d, want 1", len(chat.Messages))
	}
}

func TestMergeDoesNotResurrectTombstonedChat(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "doomed")
	s.MarkDeleted(localID)

	// A stale snapshot still lists the deleted chat.
	raw := snapshotJSON(t, map[string]snapshotChat{
		"10": {Name: "doomed", Ready: true},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if len(s.Chats()) != 0 {
		t.Errorf("tombstoned chat resurrected: %+v", s.Chats())
	}
}

func TestMergePrunesTombstoneAfterConfirmedAbsence(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "doomed")
	s.MarkDeleted(localID)

	// First snapshot confirms the deletion took.
	if err := s.Merge(snapshotJSON(t, map[string]snapshotChat{})); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	// The id now belongs to a legitimately new chat; it must be adopted.
	raw := snapshotJSON(t, map[string]snapshotChat{
		"10": {Name: "reborn", Ready: true},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(s.Chats()) != 1 {
		t.Errorf("chat not adopted after tombstone pruned: %+v", s.Chats())
	}
}

func TestMergeSkipsAdoptionWhileResolutionPending(t *testing.T) {
	s := testState()
	h := s.CreateChat("in flight")

	// The unknown remote chat might be our own create racing ahead of
	// Resolve, so it must not be adopted yet.
	raw := snapshotJSON(t, map[string]snapshotChat{
		"42": {Name: "in flight", Ready: true},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(s.Chats()) != 1 {
		t.Fatalf("chats = %d, want only the tentative one", len(s.Chats()))
	}

	s.Resolve(h.LocalID, 42)
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	chats := s.Chats()
	if len(chats) != 1 || chats[0].PublicID != 42 {
		t.Errorf("after resolution chats = %+v", chats)
	}
}

func TestMergeAdoptsUnknownRemoteChat(t *testing.T) {
	s := testState()

	raw := snapshotJSON(t, map[string]snapshotChat{
		"7": {Name: "from peer", Ready: true, Messages: []Message{userMsg(2, "hi")}},
	})
	if err := s.Merge(raw); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	chats := s.Chats()
	if len(chats) != 1 {
		t.Fatalf("chats = %d, want 1", len(chats))
	}
	if chats[0].PublicID != 7 || chats[0].Name != "from peer" {
		t.Errorf("adopted chat = %+v", chats[0])
	}
	if chats[0].LocalID >= 0 {
		t.Errorf("adopted chat local id = %d, want negative", chats[0].LocalID)
	}
}

func TestMergeIgnoresMalformedSnapshot(t *testing.T) {
	s := testState()
	localID := resolvedChat(s, 10, "work", userMsg(1, "hello"))

	for name, raw := range map[string]string{
		"not json":      `{"chats": `,
		"missing chats": `{"users": [], "cluster_token": "x"}`,
		"missing users": `{"chats": {}, "cluster_token": "x"}`,
		"missing token": `{"chats": {}, "users": []}`,
	} {
		if err := s.Merge([]byte(raw)); err == nil {
			t.Errorf("%s: Merge() error = nil, want error", name)
		}
	}

	chat, ok := s.ChatByLocal(localID)
	if !ok || len(chat.Messages) != 1 {
		t.Error("malformed snapshots must leave local state untouched")
	}
}

func TestHandleWaitResolution(t *testing.T) {
	s := testState()
	h := s.CreateChat("new")

	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Resolve(h.LocalID, 99)
	}()

	publicID, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if publicID != 99 {
		t.Errorf("Wait() = %d, want 99", publicID)
	}
}

func TestHandleWaitContextExpiry(t *testing.T) {
	s := testState()
	h := s.CreateChat("never resolves")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := h.Wait(ctx); err == nil {
		t.Fatal("Wait() error = nil, want context error")
	}
}

func TestHandleWaitAbort(t *testing.T) {
	s := testState()
	h := s.CreateChat("failed create")

	s.Abort(h.LocalID, context.DeadlineExceeded)

	if _, err := h.Wait(context.Background()); err == nil {
		t.Fatal("Wait() after Abort error = nil, want error")
	}
	if len(s.Chats()) != 0 {
		t.Error("aborted chat must be removed")
	}
}
