package mirror

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

type snapshotChat struct {
	Name     string    `json:"name"`
	Ready    bool      `json:"ready"`
	Messages []Message `json:"messages"`
}

type snapshot struct {
	UserID       uint                    `json:"user_id"`
	ClusterToken string                  `json:"cluster_token"`
	Chats        map[string]snapshotChat `json:"chats"`
	Users        []Peer                  `json:"users"`
}

// Merge reconciles one server snapshot into the local state. The whole
// pass holds the state lock, so readers never observe a half-applied
// snapshot. A snapshot missing any expected top-level key is ignored
// wholesale; the next poll cycle is relied upon to recover.
func (s *State) Merge(raw []byte) error {
	if err := validateSnapshot(raw); err != nil {
		s.logger.WithError(err).Warn("Ignoring malformed snapshot")
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.WithError(err).Warn("Ignoring undecodable snapshot")
		return fmt.Errorf("decode snapshot: %w", err)
	}

	remote := make(map[uint]snapshotChat, len(snap.Chats))
	for key, chat := range snap.Chats {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			s.logger.WithField("chat_key", key).Warn("Ignoring snapshot with bad chat key")
			return fmt.Errorf("bad chat key %q", key)
		}
		remote[uint(id)] = chat
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clusterToken = snap.ClusterToken
	s.peers = snap.Users

	// While any local chat is still waiting for its public id, the
	// snapshot cannot be told apart from one that simply predates the
	// create, so unknown remote chats are not adopted and tombstones are
	// not pruned this cycle.
	complete := true
	for _, e := range s.chats {
		if e.chat.PublicID == 0 {
			complete = false
			break
		}
	}

	// Drop resolved local chats the server no longer lists.
	for localID, e := range s.chats {
		publicID := e.chat.PublicID
		if publicID == 0 {
			continue
		}
		if _, present := remote[publicID]; !present {
			delete(s.chats, localID)
			delete(s.byPublic, publicID)
		}
	}

	// Fold in chats present on both sides.
	for publicID, remoteChat := range remote {
		localID, known := s.byPublic[publicID]
		if !known {
			continue
		}
		e := s.chats[localID]
		e.chat.Name = remoteChat.Name
		// The server is the sole source of truth for busy/idle.
		e.chat.Ready = remoteChat.Ready
		// A strictly shorter remote list means our optimistic append has
		// not round-tripped yet; keep the local copy so the just-sent
		// message does not flicker away.
		if len(remoteChat.Messages) >= len(e.chat.Messages) {
			e.chat.Messages = append([]Message(nil), remoteChat.Messages...)
		}
	}

	// Adopt unknown remote chats, resurrecting nothing that was deleted
	// here.
	if complete {
		for publicID, remoteChat := range remote {
			if _, known := s.byPublic[publicID]; known {
				continue
			}
			if s.tombstones[publicID] {
				continue
			}
			id := s.nextTentative
			s.nextTentative--
			e := &entry{
				chat: Chat{
					LocalID:  id,
					PublicID: publicID,
					Name:     remoteChat.Name,
					Ready:    remoteChat.Ready,
					Messages: append([]Message(nil), remoteChat.Messages...),
				},
				resolved: make(chan struct{}),
			}
			close(e.resolved)
			s.chats[id] = e
			s.byPublic[publicID] = id
		}

		// A complete snapshot that no longer lists a tombstoned id
		// confirms the deletion stuck; the tombstone has done its job.
		for publicID := range s.tombstones {
			if _, present := remote[publicID]; !present {
				delete(s.tombstones, publicID)
			}
		}
	}

	return nil
}

// validateSnapshot checks the top-level shape before anything is applied.
func validateSnapshot(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("snapshot is not valid JSON")
	}
	body := gjson.ParseBytes(raw)
	for _, key := range []string{"chats", "users", "cluster_token"} {
		if !body.Get(key).Exists() {
			return fmt.Errorf("snapshot missing %q", key)
		}
	}
	return nil
}
