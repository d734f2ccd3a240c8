package tripchat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/FACorreiaa/travesia/internal/app/models"
)

// State names the intake flow's position. Transitions are owned exclusively by
// the Service; handlers only read it.
type State string

const (
	StateGathering            State = "gathering"
	StateAwaitingGeneration   State = "awaiting_generation"
	StateReady                State = "ready"
	StateAwaitingRegeneration State = "awaiting_regeneration"
)

// Session is the per-conversation mutable state: the transcript, the trip
// snapshot used for regenerations, the current itinerary, and the single
// pending message held behind the registration gate. All access goes through
// the embedded mutex; async work re-checks the load sequence before committing
// so a stale response never corrupts a newly loaded conversation.
type Session struct {
	mu sync.Mutex

	ID             uuid.UUID
	UserID         uuid.UUID
	ConversationID uuid.UUID
	State          State

	Transcript     []models.ConversationTurn
	PendingMessage *string
	Snapshot       *models.TripRequest
	Itinerary      *models.ItineraryDocument
	TripID         uuid.UUID

	loadSeq  atomic.Int64
	inFlight bool
}

func NewSession() *Session {
	return &Session{
		ID:    uuid.New(),
		State: StateGathering,
	}
}

// Reset wipes everything for a "new chat", invalidating in-flight loads.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq.Add(1)
	s.ConversationID = uuid.Nil
	s.State = StateGathering
	s.Transcript = nil
	s.PendingMessage = nil
	s.Snapshot = nil
	s.Itinerary = nil
	s.TripID = uuid.Nil
	s.inFlight = false
}

func (s *Session) HasItinerary() bool {
	return s.Itinerary != nil
}

func (s *Session) userTurnCount() int {
	count := 0
	for _, t := range s.Transcript {
		if t.Role == models.RoleUser {
			count++
		}
	}
	return count
}

// chatMessages maps the transcript to the classifier's wire shape, skipping
// unresolved placeholders.
func (s *Session) chatMessages() []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(s.Transcript))
	for _, t := range s.Transcript {
		if t.Kind == models.TurnPlaceholder {
			continue
		}
		out = append(out, models.ChatMessage{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func (s *Session) appendTurn(turn models.ConversationTurn) {
	s.Transcript = append(s.Transcript, turn)
}

// replacePlaceholder swaps the trailing placeholder turn for its final form.
// The check is structural, not a content match; returns false when no
// placeholder is pending.
func (s *Session) replacePlaceholder(turn models.ConversationTurn) bool {
	if len(s.Transcript) == 0 {
		return false
	}
	last := &s.Transcript[len(s.Transcript)-1]
	if last.Kind != models.TurnPlaceholder {
		return false
	}
	turn.ID = last.ID
	turn.ConversationID = last.ConversationID
	s.Transcript[len(s.Transcript)-1] = turn
	return true
}

func newTurn(conversationID uuid.UUID, role models.TurnRole, content string, kind models.TurnKind) models.ConversationTurn {
	return models.ConversationTurn{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Kind:           kind,
		CreatedAt:      time.Now().UTC(),
	}
}

// Store keeps live sessions in memory with a TTL; an expired session simply
// starts fresh on next contact.
type Store struct {
	cache *gocache.Cache
}

func NewStore(ttl time.Duration) *Store {
	return &Store{cache: gocache.New(ttl, 2*ttl)}
}

func (st *Store) Get(id string) (*Session, bool) {
	if v, found := st.cache.Get(id); found {
		return v.(*Session), true
	}
	return nil, false
}

// GetOrCreate returns the session for id, creating one when absent or
// expired. Each access refreshes the TTL.
func (st *Store) GetOrCreate(id string) *Session {
	if sess, found := st.Get(id); found {
		st.cache.Set(id, sess, gocache.DefaultExpiration)
		return sess
	}
	sess := NewSession()
	if parsed, err := uuid.Parse(id); err == nil {
		sess.ID = parsed
	}
	st.cache.Set(sess.ID.String(), sess, gocache.DefaultExpiration)
	return sess
}
