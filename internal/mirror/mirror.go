// Package mirror maintains the agent's local copy of the cluster state and
// reconciles it against server snapshots.
//
// Chats are keyed by a local id the mirror assigns. Ids are negative and
// count down; a chat created locally keeps its tentative id after the
// server assigns a public id, so consumers never see an id change. One
// mutex guards the whole state: a merge pass is atomic with respect to
// reads and local mutations.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is one chat message as the mirror sees it. A nil UserSent means
// the message was authored by the model.
type Message struct {
	UserSent *uint     `json:"user_sent"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// Peer is one cluster member from the snapshot roster.
type Peer struct {
	UserID     uint      `json:"user_id"`
	About      string    `json:"about"`
	LastOnline time.Time `json:"last_online"`
}

// Chat is the mirror's view of one chat.
type Chat struct {
	LocalID  int64
	PublicID uint // 0 until the create round-trip resolves
	Name     string
	Ready    bool
	Messages []Message
}

type entry struct {
	chat       Chat
	resolved   chan struct{}
	resolveErr error
}

// State is the reconciled local cluster state.
type State struct {
	mu            sync.Mutex
	chats         map[int64]*entry
	byPublic      map[uint]int64
	tombstones    map[uint]bool
	peers         []Peer
	clusterToken  string
	nextTentative int64
	logger        *logrus.Entry
}

// NewState creates an empty mirror.
func NewState(logger *logrus.Entry) *State {
	return &State{
		chats:         make(map[int64]*entry),
		byPublic:      make(map[uint]int64),
		tombstones:    make(map[uint]bool),
		nextTentative: -1,
		logger:        logger.WithField("component", "mirror"),
	}
}

// Handle tracks the resolution of a locally created chat to its public id.
type Handle struct {
	LocalID int64
	state   *State
	entry   *entry
}

// Wait blocks until the chat's public id is known or ctx expires.
func (h *Handle) Wait(ctx context.Context) (uint, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.entry.resolved:
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if h.entry.resolveErr != nil {
		return 0, h.entry.resolveErr
	}
	return h.entry.chat.PublicID, nil
}

// CreateChat adds a local chat under a fresh tentative id. The caller
// issues the remote create and reports the outcome through Resolve or
// Abort; until then the chat is invisible to merges.
func (s *State) CreateChat(name string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextTentative
	s.nextTentative--

	e := &entry{
		chat: Chat{
			LocalID: id,
			Name:    name,
			Ready:   true,
		},
		resolved: make(chan struct{}),
	}
	s.chats[id] = e
	return &Handle{LocalID: id, state: s, entry: e}
}

// Resolve records the server-assigned public id for a tentative chat.
func (s *State) Resolve(localID int64, publicID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[localID]
	if !ok || e.chat.PublicID != 0 {
		return
	}
	e.chat.PublicID = publicID
	s.byPublic[publicID] = localID
	close(e.resolved)
}

// Abort removes a tentative chat whose remote create failed and releases
// its waiters with the error.
func (s *State) Abort(localID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[localID]
	if !ok || e.chat.PublicID != 0 {
		return
	}
	e.resolveErr = err
	delete(s.chats, localID)
	close(e.resolved)
}

// MarkDeleted removes a chat locally and tombstones its public id so a
// stale snapshot cannot resurrect it.
func (s *State) MarkDeleted(localID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[localID]
	if !ok {
		return
	}
	if e.chat.PublicID != 0 {
		s.tombstones[e.chat.PublicID] = true
		delete(s.byPublic, e.chat.PublicID)
	}
	delete(s.chats, localID)
}

// AppendLocal optimistically appends a just-sent message so the local view
// shows it before the snapshot round-trips. The chat is marked busy until
// a snapshot says otherwise.
func (s *State) AppendLocal(localID int64, userID uint, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[localID]
	if !ok {
		return
	}
	e.chat.Messages = append(e.chat.Messages, Message{
		UserSent: &userID,
		Text:     text,
		Time:     time.Now(),
	})
	e.chat.Ready = false
}

// Chats returns a copy of every chat, for display or action dispatch.
func (s *State) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Chat, 0, len(s.chats))
	for _, e := range s.chats {
		out = append(out, copyChat(&e.chat))
	}
	return out
}

// ChatByLocal returns one chat by its local id.
func (s *State) ChatByLocal(localID int64) (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.chats[localID]
	if !ok {
		return Chat{}, false
	}
	return copyChat(&e.chat), true
}

// Peers returns the last-merged member roster.
func (s *State) Peers() []Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Peer(nil), s.peers...)
}

// ClusterToken returns the cluster join token from the last snapshot.
func (s *State) ClusterToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clusterToken
}

func copyChat(c *Chat) Chat {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}
