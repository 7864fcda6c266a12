// Package collab coordinates concurrent reference editing within shared
// sessions: per-reference advisory locks, append-only edit history, and
// automatic or manual conflict resolution.
package collab

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/cache"
	"github.com/sells-group/biblio-cli/internal/model"
)

// cacheNamespace persists session snapshots for recovery and
// multi-instance visibility.
const cacheNamespace = "collab"

// sessionTTL bounds how long an abandoned session snapshot survives.
const sessionTTL = 24 * time.Hour

var (
	// ErrNotLocked rejects a modify/delete edit whose submitter does not
	// hold the reference lock.
	ErrNotLocked = eris.New("collab: reference not locked")

	// ErrLockHeld rejects a lock request while another editor holds it.
	ErrLockHeld = eris.New("collab: lock held by another editor")

	// ErrNoSession rejects operations against an unknown session.
	ErrNoSession = eris.New("collab: session not found")
)

// session is one shared editing session over a reference set.
type session struct {
	ID      string                         `json:"id"`
	Editors map[string]bool                `json:"editors"`
	Locks   map[string]string              `json:"locks"` // referenceID -> editorID
	History []model.ReferenceEdit          `json:"history"`
	Pending map[string]model.ReferenceEdit `json:"pending"` // (refID+"\x00"+field) -> last accepted edit
}

// Coordinator manages editing sessions. It is the one component in the
// pipeline requiring explicit mutual exclusion; all session state is
// guarded by its mutex.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*session
	store    cache.Store
	timeNow  func() time.Time
}

// NewCoordinator creates a Coordinator persisting session state to the
// given cache. store may be nil for ephemeral sessions.
func NewCoordinator(store cache.Store) *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*session),
		store:    store,
		timeNow:  time.Now,
	}
}

// CreateSession opens a session and joins the first editor.
func (c *Coordinator) CreateSession(ctx context.Context, editorID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &session{
		ID:      uuid.NewString(),
		Editors: map[string]bool{editorID: true},
		Locks:   make(map[string]string),
		Pending: make(map[string]model.ReferenceEdit),
	}
	c.sessions[s.ID] = s
	c.persistLocked(ctx, s)

	zap.L().Info("collab: session created",
		zap.String("session_id", s.ID),
		zap.String("editor_id", editorID),
	)
	return s.ID
}

// JoinSession adds an editor to an existing session.
func (c *Coordinator) JoinSession(ctx context.Context, sessionID, editorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}
	s.Editors[editorID] = true
	c.persistLocked(ctx, s)
	return nil
}

// RequestLock acquires the per-reference lock. Succeeds from Unlocked or
// when the requester already holds it (idempotent); fails while another
// editor holds it.
func (c *Coordinator) RequestLock(ctx context.Context, sessionID, referenceID, editorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}

	if holder, locked := s.Locks[referenceID]; locked && holder != editorID {
		return eris.Wrapf(ErrLockHeld, "reference %s held by %s", referenceID, holder)
	}
	s.Locks[referenceID] = editorID
	c.persistLocked(ctx, s)
	return nil
}

// ReleaseLock returns the reference to Unlocked. Releasing a lock not
// held by the editor is a no-op.
func (c *Coordinator) ReleaseLock(ctx context.Context, sessionID, referenceID, editorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}
	if s.Locks[referenceID] == editorID {
		delete(s.Locks, referenceID)
		c.persistLocked(ctx, s)
	}
	return nil
}

// SubmitEdit applies one edit. Modify and delete edits require the
// submitter to hold the reference lock. A conflicting pending edit on
// the same (reference, field) by another editor is resolved by strategy;
// manual escalation rejects the edit with RequiresManualResolution set.
func (c *Coordinator) SubmitEdit(ctx context.Context, sessionID string, edit model.ReferenceEdit) (*model.ConflictResolution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, eris.Wrapf(ErrNoSession, "%s", sessionID)
	}

	if edit.Type == model.EditModify || edit.Type == model.EditDelete {
		if s.Locks[edit.ReferenceID] != edit.EditorID {
			return nil, eris.Wrapf(ErrNotLocked, "reference %s", edit.ReferenceID)
		}
	}

	edit.ID = uuid.NewString()
	edit.SessionID = sessionID
	if edit.Timestamp.IsZero() {
		edit.Timestamp = c.timeNow()
	}

	key := edit.ReferenceID + "\x00" + edit.Field
	var resolution *model.ConflictResolution

	if prior, pending := s.Pending[key]; pending && prior.EditorID != edit.EditorID {
		resolution = c.resolve(prior, edit)
		if resolution.RequiresManualResolution {
			zap.L().Warn("collab: conflict requires manual resolution",
				zap.String("session_id", sessionID),
				zap.String("reference_id", edit.ReferenceID),
				zap.String("field", edit.Field),
			)
			return resolution, nil
		}
	}

	// History is append-only; nothing mutates accepted entries.
	s.History = append(s.History, edit)
	if resolution != nil && resolution.Winner != nil {
		s.Pending[key] = *resolution.Winner
	} else {
		s.Pending[key] = edit
	}
	c.persistLocked(ctx, s)
	return resolution, nil
}

// listFields use set-union merge; simple scalar fields use latest-wins.
var listFields = map[string]bool{
	"authors":  true,
	"keywords": true,
}

var scalarFields = map[string]bool{
	"title":   true,
	"journal": true,
	"year":    true,
	"volume":  true,
	"issue":   true,
	"pages":   true,
	"doi":     true,
	"url":     true,
}

func (c *Coordinator) resolve(prior, incoming model.ReferenceEdit) *model.ConflictResolution {
	res := &model.ConflictResolution{
		ReferenceID: incoming.ReferenceID,
		Field:       incoming.Field,
		Edits:       []model.ReferenceEdit{prior, incoming},
		ResolvedAt:  c.timeNow(),
	}

	switch {
	case scalarFields[incoming.Field]:
		res.Strategy = model.ResolveLatestWins
		winner := incoming
		if prior.Timestamp.After(incoming.Timestamp) {
			winner = prior
		}
		res.Winner = &winner
		res.MergedValue = winner.NewValue
	case listFields[incoming.Field]:
		res.Strategy = model.ResolveSetUnion
		res.MergedValue = setUnion(prior.NewValue, incoming.NewValue)
		res.Winner = &incoming
		res.Winner.NewValue = res.MergedValue
	default:
		res.Strategy = model.ResolveManual
		res.RequiresManualResolution = true
	}
	return res
}

// setUnion merges two list values preserving first-seen order.
func setUnion(a, b any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range append(toStrings(a), toStrings(b)...) {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}

// History returns a copy of the session's accepted edits in order.
func (c *Coordinator) History(sessionID string) ([]model.ReferenceEdit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, eris.Wrapf(ErrNoSession, "%s", sessionID)
	}
	out := make([]model.ReferenceEdit, len(s.History))
	copy(out, s.History)
	return out, nil
}

// LockHolder reports which editor holds the reference lock, if any.
func (c *Coordinator) LockHolder(sessionID, referenceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return "", false
	}
	holder, locked := s.Locks[referenceID]
	return holder, locked
}

// LeaveSession releases every lock the departing editor held; a session
// with no remaining editors is torn down.
func (c *Coordinator) LeaveSession(ctx context.Context, sessionID, editorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}

	delete(s.Editors, editorID)
	for refID, holder := range s.Locks {
		if holder == editorID {
			delete(s.Locks, refID)
		}
	}

	if len(s.Editors) == 0 {
		delete(c.sessions, sessionID)
		if c.store != nil {
			if err := c.store.Delete(ctx, cacheNamespace, sessionID); err != nil {
				zap.L().Warn("collab: session teardown cleanup failed", zap.Error(err))
			}
		}
		zap.L().Info("collab: session torn down", zap.String("session_id", sessionID))
		return nil
	}

	c.persistLocked(ctx, s)
	return nil
}

// persistLocked snapshots the session after every transition. Callers
// hold c.mu.
func (c *Coordinator) persistLocked(ctx context.Context, s *session) {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		zap.L().Warn("collab: snapshot marshal failed", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, cacheNamespace, s.ID, data, sessionTTL); err != nil {
		zap.L().Warn("collab: snapshot write failed",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
	}
}

// RestoreSession loads a persisted session snapshot, letting another
// instance resume coordination after a restart.
func (c *Coordinator) RestoreSession(ctx context.Context, sessionID string) error {
	if c.store == nil {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}
	data, err := c.store.Get(ctx, cacheNamespace, sessionID)
	if err != nil {
		return eris.Wrapf(ErrNoSession, "%s", sessionID)
	}

	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "collab: decode session snapshot")
	}
	if s.Pending == nil {
		s.Pending = make(map[string]model.ReferenceEdit)
	}
	if s.Locks == nil {
		s.Locks = make(map[string]string)
	}

	c.mu.Lock()
	c.sessions[s.ID] = &s
	c.mu.Unlock()
	return nil
}
