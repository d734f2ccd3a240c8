package tripchat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/domain/conversations"
	"github.com/FACorreiaa/travesia/internal/app/domain/itinerary"
	"github.com/FACorreiaa/travesia/internal/app/gateway"
	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/app/observability/metrics"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
)

// Classifier turns a transcript into either a clarifying question or a
// completed trip request.
type Classifier interface {
	Classify(ctx context.Context, messages []models.ChatMessage, location *models.UserLocation) (*gateway.IntakeReply, error)
}

// Generator turns a trip request (plus an optional free-text change
// description) into an itinerary document.
type Generator interface {
	Generate(ctx context.Context, trip *models.TripRequest, changes string) (*models.ItineraryDocument, error)
}

// Service is the trip intake state machine. For every user message it decides
// whether to gate it behind registration, forward it to the classifier, fire a
// fresh generation, or attempt a speculative regeneration of the existing
// itinerary.
type Service interface {
	HandleMessage(ctx context.Context, sess *Session, content string, authenticated bool, location *models.UserLocation) (*MessageResult, error)
	SubmitPending(ctx context.Context, sess *Session, location *models.UserLocation) (*MessageResult, error)
	LoadConversation(ctx context.Context, sess *Session, userID, conversationID uuid.UUID) error
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	classifier Classifier
	generator  Generator
	repo       conversations.Repository
	presenter  *itinerary.Service
	ack        *AckMatcher
	intakeCfg  config.IntakeConfig
	gatewayCfg config.GatewayConfig
	logger     *zap.Logger
}

func NewService(
	classifier Classifier,
	generator Generator,
	repo conversations.Repository,
	presenter *itinerary.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		classifier: classifier,
		generator:  generator,
		repo:       repo,
		presenter:  presenter,
		ack:        NewAckMatcher(cfg.Intake.AcknowledgementWords),
		intakeCfg:  cfg.Intake,
		gatewayCfg: cfg.Gateway,
		logger:     logger,
	}
}

// MessageResult is the state machine's outcome for one user message.
type MessageResult struct {
	Gated              bool                      `json:"gated"`
	RegistrationPrompt string                    `json:"registration_prompt,omitempty"`
	Turns              []models.ConversationTurn `json:"turns"`
	State              State                     `json:"state"`
	Itinerary          *models.ItineraryDocument `json:"itinerary,omitempty"`
	View               *itinerary.TripView       `json:"view,omitempty"`
	TripSaveFailed     bool                      `json:"trip_save_failed,omitempty"`
}

// HandleMessage runs the per-message algorithm: registration gate, then
// acknowledgement filter, then the classifier call, then either a fresh
// generation or a best-effort regeneration.
func (s *ServiceImpl) HandleMessage(ctx context.Context, sess *Session, content string, authenticated bool, location *models.UserLocation) (*MessageResult, error) {
	metrics.Get().IntakeTurnsTotal.Add(ctx, 1)

	sess.mu.Lock()
	if sess.inFlight {
		sess.mu.Unlock()
		return nil, models.ErrGenerationInFlight
	}

	// Registration gate: unauthenticated sessions get a configurable number of
	// free messages; the next one is held (last write wins) until sign-in.
	if !authenticated && sess.userTurnCount() >= s.intakeCfg.FreeMessageLimit {
		pending := content
		sess.PendingMessage = &pending
		prompt := localize(s.languageHint(sess)).RegistrationPrompt
		result := &MessageResult{
			Gated:              true,
			RegistrationPrompt: prompt,
			Turns:              snapshotTurns(sess),
			State:              sess.State,
		}
		sess.mu.Unlock()
		metrics.Get().PendingMessagesGauge.Record(ctx, 1)
		return result, nil
	}

	if authenticated && sess.ConversationID == uuid.Nil {
		s.ensureConversation(ctx, sess, content)
	}

	userTurn := newTurn(sess.ConversationID, models.RoleUser, content, models.TurnFinal)
	sess.appendTurn(userTurn)
	sess.inFlight = true
	seq := sess.loadSeq.Load()
	hadItinerary := sess.HasItinerary()
	messages := sess.chatMessages()
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.inFlight = false
		sess.mu.Unlock()
	}()

	s.persistTurn(userTurn)

	ackOnly := hadItinerary && s.ack.IsAcknowledgement(content)

	reply, err := s.classifier.Classify(ctx, messages, location)
	if err != nil {
		// Transport and quota errors surface to the user without touching
		// committed state.
		s.logger.Warn("Classifier call failed", zap.Error(err))
		return nil, err
	}

	if !reply.Complete {
		assistantTurn := newTurn(sess.ConversationID, models.RoleAssistant, reply.Text, models.TurnFinal)

		sess.mu.Lock()
		if sess.loadSeq.Load() != seq {
			sess.mu.Unlock()
			return s.result(sess), nil
		}
		sess.appendTurn(assistantTurn)
		sess.mu.Unlock()

		s.persistTurn(assistantTurn)

		if hadItinerary && !ackOnly {
			s.maybeRegenerate(ctx, sess, content, seq)
		}
		return s.result(sess), nil
	}

	return s.generateFresh(ctx, sess, reply.Trip, seq)
}

// generateFresh handles a fresh "complete" classifier result: placeholder
// turn, generator call with bounded retry, structural placeholder replacement,
// snapshot, persistence.
func (s *ServiceImpl) generateFresh(ctx context.Context, sess *Session, trip *models.TripRequest, seq int64) (*MessageResult, error) {
	msgs := localize(trip.Language)

	placeholder := newTurn(sess.ConversationID, models.RoleAssistant, msgs.Generating, models.TurnPlaceholder)
	sess.mu.Lock()
	if sess.loadSeq.Load() != seq {
		sess.mu.Unlock()
		return s.result(sess), nil
	}
	sess.appendTurn(placeholder)
	sess.State = StateAwaitingGeneration
	sess.mu.Unlock()

	inserted := s.persistTurn(placeholder)

	doc, err := s.generateWithRetry(ctx, trip)

	sess.mu.Lock()
	if sess.loadSeq.Load() != seq {
		sess.mu.Unlock()
		return s.result(sess), nil
	}

	if err != nil {
		metrics.Get().GenerationsTotal.Add(ctx, 1)
		s.logger.Error("Itinerary generation failed",
			zap.String("destination", trip.Destination),
			zap.Error(err))

		errorTurn := newTurn(sess.ConversationID, models.RoleAssistant, msgs.GenerationFailed, models.TurnFinal)
		if sess.replacePlaceholder(errorTurn) {
			errorTurn = sess.Transcript[len(sess.Transcript)-1]
		} else {
			sess.appendTurn(errorTurn)
		}
		// Prior itinerary, if any, stays untouched; no partial state survives.
		if sess.HasItinerary() {
			sess.State = StateReady
		} else {
			sess.State = StateGathering
		}
		sess.mu.Unlock()

		s.persistTurnUpdate(errorTurn, inserted)
		return s.result(sess), nil
	}

	metrics.Get().GenerationsTotal.Add(ctx, 1)

	summary := doc.Summary.Description
	if summary == "" {
		summary = msgs.SummaryFallback
	}
	finalTurn := newTurn(sess.ConversationID, models.RoleAssistant, summary, models.TurnFinal)
	finalTurn.Itinerary = doc
	if sess.replacePlaceholder(finalTurn) {
		finalTurn = sess.Transcript[len(sess.Transcript)-1]
	} else {
		sess.appendTurn(finalTurn)
	}

	sess.Itinerary = doc
	snapshot := *trip
	sess.Snapshot = &snapshot
	sess.State = StateReady
	userID := sess.UserID
	conversationID := sess.ConversationID
	sess.mu.Unlock()

	s.persistTurnUpdate(finalTurn, inserted)

	result := s.result(sess)

	// Trip save is the one strict persistence path: failures surface to the
	// user as retryable.
	if userID != uuid.Nil && conversationID != uuid.Nil {
		saved, err := s.repo.SaveTrip(ctx, &models.Trip{
			UserID:         userID,
			ConversationID: conversationID,
			Title:          doc.Summary.Title,
			Request:        *trip,
			Document:       *doc,
		})
		if err != nil {
			s.logger.Error("Trip save failed", zap.Error(err))
			result.TripSaveFailed = true
		} else {
			sess.mu.Lock()
			sess.TripID = saved.ID
			sess.mu.Unlock()
		}
	}

	return result, nil
}

// maybeRegenerate is the speculative regeneration path: the snapshotted trip
// request plus the raw user message as a change description. Skipped outright
// on an incomplete snapshot; failures are swallowed and the displayed
// itinerary stays as is. Never retried.
func (s *ServiceImpl) maybeRegenerate(ctx context.Context, sess *Session, changes string, seq int64) {
	sess.mu.Lock()
	snapshot := sess.Snapshot
	sess.mu.Unlock()

	if !snapshot.CompleteForRegeneration() {
		metrics.Get().RegenerationsSkipped.Add(ctx, 1)
		s.logger.Debug("Regeneration skipped: incomplete trip snapshot")
		return
	}

	sess.mu.Lock()
	sess.State = StateAwaitingRegeneration
	sess.mu.Unlock()

	snap := *snapshot
	doc, err := s.generator.Generate(ctx, &snap, changes)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.loadSeq.Load() != seq {
		return
	}
	sess.State = StateReady

	if err != nil {
		metrics.Get().RegenerationsTotal.Add(ctx, 1)
		s.logger.Warn("Speculative regeneration failed, keeping previous itinerary",
			zap.Error(err))
		return
	}

	metrics.Get().RegenerationsTotal.Add(ctx, 1)
	sess.Itinerary = doc

	if sess.UserID != uuid.Nil && sess.ConversationID != uuid.Nil {
		userID, conversationID := sess.UserID, sess.ConversationID
		trip := models.Trip{
			UserID:         userID,
			ConversationID: conversationID,
			Title:          doc.Summary.Title,
			Request:        snap,
			Document:       *doc,
		}
		go func() {
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.repo.SaveTrip(saveCtx, &trip); err != nil {
				s.logger.Warn("Failed to persist regenerated trip", zap.Error(err))
			}
		}()
	}
}

// SubmitPending releases the message held behind the registration gate,
// exactly once, after the session has been bound to an authenticated user.
func (s *ServiceImpl) SubmitPending(ctx context.Context, sess *Session, location *models.UserLocation) (*MessageResult, error) {
	sess.mu.Lock()
	if sess.PendingMessage == nil {
		result := &MessageResult{
			Turns: snapshotTurns(sess),
			State: sess.State,
		}
		sess.mu.Unlock()
		return result, nil
	}
	content := *sess.PendingMessage
	sess.PendingMessage = nil
	sess.mu.Unlock()

	metrics.Get().PendingMessagesGauge.Record(ctx, 0)
	return s.HandleMessage(ctx, sess, content, true, location)
}

// LoadConversation replays a stored conversation into the session. A
// monotonic load sequence guards against a slow load committing over a newer
// one.
func (s *ServiceImpl) LoadConversation(ctx context.Context, sess *Session, userID, conversationID uuid.UUID) error {
	seq := sess.loadSeq.Add(1)

	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.UserID != userID {
		return models.ErrNotFound
	}
	turns, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return err
	}
	trip, err := s.repo.GetTripByConversation(ctx, conversationID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.loadSeq.Load() != seq {
		// A newer load or reset won the race; discard this one.
		s.logger.Debug("Discarding stale conversation load",
			zap.String("conversation_id", conversationID.String()))
		return nil
	}

	sess.ConversationID = conv.ID
	sess.UserID = conv.UserID
	sess.Transcript = turns
	sess.PendingMessage = nil
	if trip != nil {
		doc := trip.Document
		req := trip.Request
		sess.Itinerary = &doc
		sess.Snapshot = &req
		sess.TripID = trip.ID
		sess.State = StateReady
	} else {
		sess.Itinerary = nil
		sess.Snapshot = nil
		sess.TripID = uuid.Nil
		sess.State = StateGathering
	}
	return nil
}

// generateWithRetry wraps the primary generation path with a bounded retry and
// fixed backoff to absorb gateway cold starts. Only transport-level failures
// retry; quota and parse errors surface immediately.
func (s *ServiceImpl) generateWithRetry(ctx context.Context, trip *models.TripRequest) (*models.ItineraryDocument, error) {
	attempts := s.gatewayCfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		doc, err := s.generator.Generate(ctx, trip, "")
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrGatewayUnavailable) {
			break
		}
		if attempt < attempts {
			s.logger.Warn("Generation attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", s.gatewayCfg.RetryBackoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.gatewayCfg.RetryBackoff):
			}
		}
	}
	return nil, fmt.Errorf("generation failed after %d attempts: %w", attempts, lastErr)
}

// ensureConversation creates the backing conversation row on the first
// authenticated message. Failure downgrades the session to unpersisted.
func (s *ServiceImpl) ensureConversation(ctx context.Context, sess *Session, firstMessage string) {
	title := firstMessage
	// Truncate on rune boundaries; a split multi-byte character is not valid
	// UTF-8 and Postgres rejects it.
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	conv, err := s.repo.CreateConversation(ctx, sess.UserID, title)
	if err != nil {
		s.logger.Warn("Failed to create conversation, continuing unpersisted", zap.Error(err))
		return
	}
	sess.ConversationID = conv.ID
}

// persistTurn logs a turn to storage as a detached best-effort task: at most
// once, errors logged not propagated. The returned channel closes when the
// insert attempt has finished, so a later update of the same row can be
// sequenced behind it.
func (s *ServiceImpl) persistTurn(turn models.ConversationTurn) <-chan struct{} {
	done := make(chan struct{})
	if turn.ConversationID == uuid.Nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.AppendMessage(ctx, turn); err != nil {
			s.logger.Warn("Failed to persist message",
				zap.String("message_id", turn.ID.String()),
				zap.Error(err))
			return
		}
		if err := s.repo.TouchConversation(ctx, turn.ConversationID); err != nil {
			s.logger.Debug("Failed to touch conversation", zap.Error(err))
		}
	}()
	return done
}

// persistTurnUpdate rewrites a previously inserted turn. It waits for the
// insert to finish first so the update never races ahead of the row it
// targets.
func (s *ServiceImpl) persistTurnUpdate(turn models.ConversationTurn, inserted <-chan struct{}) {
	if turn.ConversationID == uuid.Nil {
		return
	}
	go func() {
		if inserted != nil {
			<-inserted
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.UpdateMessage(ctx, turn); err != nil {
			s.logger.Warn("Failed to persist message update",
				zap.String("message_id", turn.ID.String()),
				zap.Error(err))
		}
	}()
}

func (s *ServiceImpl) languageHint(sess *Session) string {
	if sess.Snapshot != nil {
		return sess.Snapshot.Language
	}
	return ""
}

func (s *ServiceImpl) result(sess *Session) *MessageResult {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	result := &MessageResult{
		Turns:     snapshotTurns(sess),
		State:     sess.State,
		Itinerary: sess.Itinerary,
	}
	if sess.Itinerary != nil {
		result.View = s.presenter.Project(sess.Itinerary, sess.Snapshot, nil)
	}
	return result
}

func snapshotTurns(sess *Session) []models.ConversationTurn {
	out := make([]models.ConversationTurn, len(sess.Transcript))
	copy(out, sess.Transcript)
	return out
}
