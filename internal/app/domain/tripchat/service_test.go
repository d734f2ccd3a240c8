package tripchat

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/domain/itinerary"
	"github.com/FACorreiaa/travesia/internal/app/gateway"
	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/pkg/config"
)

func newTestPresenter(premium []string) *itinerary.Service {
	return itinerary.NewService(premium, nil, zap.NewNop())
}

type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, messages []models.ChatMessage, location *models.UserLocation) (*gateway.IntakeReply, error) {
	args := m.Called(ctx, messages, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.IntakeReply), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, trip *models.TripRequest, changes string) (*models.ItineraryDocument, error) {
	args := m.Called(ctx, trip, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ItineraryDocument), args.Error(1)
}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	args := m.Called(ctx, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockRepository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockRepository) ListConversations(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]*models.Conversation, error) {
	args := m.Called(ctx, userID, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}

func (m *MockRepository) DeleteConversation(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *MockRepository) TouchConversation(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) AppendMessage(ctx context.Context, turn models.ConversationTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockRepository) UpdateMessage(ctx context.Context, turn models.ConversationTurn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *MockRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationTurn, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationTurn), args.Error(1)
}

func (m *MockRepository) SaveTrip(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	args := m.Called(ctx, trip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockRepository) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockRepository) GetTripByConversation(ctx context.Context, conversationID uuid.UUID) (*models.Trip, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockRepository) AddTripItem(ctx context.Context, item models.AddedItem) (*models.AddedItem, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AddedItem), args.Error(1)
}

func (m *MockRepository) ListTripItems(ctx context.Context, tripID uuid.UUID) ([]models.AddedItem, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AddedItem), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
		},
		Intake: config.IntakeConfig{
			FreeMessageLimit:     1,
			AcknowledgementWords: []string{"gracias", "ok", "thanks", "perfecto"},
			PremiumAirlines:      []string{"emirates", "qatar"},
			SessionTTL:           time.Hour,
		},
	}
}

type serviceFixture struct {
	classifier *MockClassifier
	generator  *MockGenerator
	repo       *MockRepository
	svc        *ServiceImpl
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cfg := testConfig()
	classifier := &MockClassifier{}
	generator := &MockGenerator{}
	repo := &MockRepository{}
	svc := NewService(classifier, generator, repo,
		newTestPresenter(cfg.Intake.PremiumAirlines), cfg, zap.NewNop())
	return &serviceFixture{classifier: classifier, generator: generator, repo: repo, svc: svc}
}

func completeTrip() *models.TripRequest {
	return &models.TripRequest{
		Destination:   "Madrid",
		Origin:        "Buenos Aires",
		DepartureDate: "2026-05-01",
		ReturnDate:    "2026-05-20",
		Passengers:    2,
		Language:      "es",
	}
}

func sampleDocument(description string) *models.ItineraryDocument {
	doc := &models.ItineraryDocument{
		Summary: models.ItinerarySummary{
			Title:        "Madrid en mayo",
			Description:  description,
			DurationDays: 20,
		},
	}
	doc.EnsureSections()
	return doc
}

func incompleteReply(text string) *gateway.IntakeReply {
	return &gateway.IntakeReply{Text: text}
}

func completeReply(trip *models.TripRequest) *gateway.IntakeReply {
	return &gateway.IntakeReply{Complete: true, Trip: trip}
}

func TestHandleMessageIncompleteAppendsSingleReply(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¿Cuándo te gustaría viajar?"), nil).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "Quiero ir a Madrid", false, nil)
	require.NoError(t, err)

	require.Len(t, result.Turns, 2)
	assert.Equal(t, models.RoleUser, result.Turns[0].Role)
	assert.Equal(t, models.RoleAssistant, result.Turns[1].Role)
	assert.Equal(t, "¿Cuándo te gustaría viajar?", result.Turns[1].Content)
	assert.Equal(t, models.TurnFinal, result.Turns[1].Kind)
	assert.Nil(t, result.Itinerary)
	assert.Equal(t, StateGathering, result.State)

	f.generator.AssertNotCalled(t, "Generate")
	f.classifier.AssertExpectations(t)
}

func TestHandleMessageCompleteGeneratesItinerary(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	trip := completeTrip()
	doc := sampleDocument("Veinte días por Madrid y alrededores.")

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(completeReply(trip), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, "").
		Return(doc, nil).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "Del 1 al 20 de mayo, somos dos", false, nil)
	require.NoError(t, err)

	// Placeholder must have been replaced, never left behind or duplicated.
	require.Len(t, result.Turns, 2)
	last := result.Turns[1]
	assert.Equal(t, models.TurnFinal, last.Kind)
	assert.Equal(t, doc.Summary.Description, last.Content)
	require.NotNil(t, last.Itinerary)

	assert.Equal(t, StateReady, result.State)
	require.NotNil(t, result.Itinerary)
	require.NotNil(t, result.View)

	require.NotNil(t, sess.Snapshot)
	assert.Equal(t, trip.Destination, sess.Snapshot.Destination)

	f.classifier.AssertExpectations(t)
	f.generator.AssertExpectations(t)
}

func TestHandleMessageGenerationFailureReplacesPlaceholderWithError(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	trip := completeTrip()

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(completeReply(trip), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, "").
		Return(nil, models.ErrQuotaExceeded).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "Del 1 al 20 de mayo", false, nil)
	require.NoError(t, err)

	require.Len(t, result.Turns, 2)
	last := result.Turns[1]
	assert.Equal(t, models.TurnFinal, last.Kind)
	assert.Equal(t, messagesByLanguage[supportedLanguages[0]].GenerationFailed, last.Content)
	assert.Nil(t, result.Itinerary)
	assert.Equal(t, StateGathering, result.State)

	// Quota errors are terminal; no retry.
	f.generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestHandleMessageRetriesTransportFailures(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	trip := completeTrip()
	doc := sampleDocument("listo")

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(completeReply(trip), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, "").
		Return(nil, models.ErrGatewayUnavailable).Twice()
	f.generator.On("Generate", mock.Anything, mock.Anything, "").
		Return(doc, nil).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "vamos", false, nil)
	require.NoError(t, err)

	require.NotNil(t, result.Itinerary)
	assert.Equal(t, StateReady, result.State)
	f.generator.AssertNumberOfCalls(t, "Generate", 3)
}

func TestHandleMessageAcknowledgementNeverRegenerates(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.Itinerary = sampleDocument("hecho")
	sess.Snapshot = completeTrip()
	sess.State = StateReady

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¡De nada! Buen viaje."), nil).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "gracias!", false, nil)
	require.NoError(t, err)

	assert.Equal(t, StateReady, result.State)
	require.NotNil(t, result.Itinerary)
	f.generator.AssertNotCalled(t, "Generate")
}

func TestHandleMessageFollowUpRegenerates(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	oldDoc := sampleDocument("versión uno")
	newDoc := sampleDocument("versión dos, con más playa")
	sess.Itinerary = oldDoc
	sess.Snapshot = completeTrip()
	sess.State = StateReady

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¡Claro! Ajusto el plan con más días de playa."), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, "quiero más playa").
		Return(newDoc, nil).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "quiero más playa", false, nil)
	require.NoError(t, err)

	assert.Equal(t, StateReady, result.State)
	assert.Same(t, newDoc, sess.Itinerary)
	assert.Equal(t, newDoc.Summary.Description, result.Itinerary.Summary.Description)
	f.generator.AssertExpectations(t)
	f.generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestHandleMessageRegenerationFailureKeepsItinerary(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	oldDoc := sampleDocument("versión uno")
	sess.Itinerary = oldDoc
	sess.Snapshot = completeTrip()
	sess.State = StateReady

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("Déjame ver qué puedo hacer."), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrGatewayUnavailable).Once()

	result, err := f.svc.HandleMessage(context.Background(), sess, "cambia el hotel", false, nil)
	require.NoError(t, err)

	assert.Same(t, oldDoc, sess.Itinerary)
	assert.Equal(t, StateReady, result.State)
	// Regeneration is single-shot, never retried.
	f.generator.AssertNumberOfCalls(t, "Generate", 1)
}

func TestHandleMessageRegenerationSkippedOnIncompleteSnapshot(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.Itinerary = sampleDocument("hecho")
	sess.Snapshot = &models.TripRequest{Destination: "Madrid"} // no dates
	sess.State = StateReady

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¿Desde dónde sales?"), nil).Once()

	_, err := f.svc.HandleMessage(context.Background(), sess, "cambia el vuelo", false, nil)
	require.NoError(t, err)

	f.generator.AssertNotCalled(t, "Generate")
}

func TestHandleMessageClassifierErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.ErrRateLimited).Once()

	_, err := f.svc.HandleMessage(context.Background(), sess, "hola", false, nil)
	require.ErrorIs(t, err, models.ErrRateLimited)
	assert.Nil(t, sess.Itinerary)
}

func TestHandleMessageRejectsConcurrentTurns(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.inFlight = true

	_, err := f.svc.HandleMessage(context.Background(), sess, "hola", false, nil)
	require.ErrorIs(t, err, models.ErrGenerationInFlight)
}

func TestRegistrationGateHoldsMessage(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¿A dónde quieres ir?"), nil).Once()

	// First anonymous message fits in the free budget.
	first, err := f.svc.HandleMessage(context.Background(), sess, "hola", false, nil)
	require.NoError(t, err)
	assert.False(t, first.Gated)

	// Second is held; the transcript does not grow.
	second, err := f.svc.HandleMessage(context.Background(), sess, "quiero ir a Madrid", false, nil)
	require.NoError(t, err)
	assert.True(t, second.Gated)
	assert.NotEmpty(t, second.RegistrationPrompt)
	assert.Len(t, second.Turns, 2)
	require.NotNil(t, sess.PendingMessage)
	assert.Equal(t, "quiero ir a Madrid", *sess.PendingMessage)

	// A newer held message overwrites the previous one, last write wins.
	third, err := f.svc.HandleMessage(context.Background(), sess, "mejor a Lisboa", false, nil)
	require.NoError(t, err)
	assert.True(t, third.Gated)
	assert.Equal(t, "mejor a Lisboa", *sess.PendingMessage)

	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
}

func TestSubmitPendingProcessesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.UserID = uuid.New()
	pending := "quiero ir a Madrid"
	sess.PendingMessage = &pending

	conv := &models.Conversation{ID: uuid.New(), UserID: sess.UserID}
	f.repo.On("CreateConversation", mock.Anything, sess.UserID, mock.Anything).Return(conv, nil).Once()
	f.repo.On("AppendMessage", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("TouchConversation", mock.Anything, mock.Anything).Return(nil)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¿Cuándo viajas?"), nil).Once()

	result, err := f.svc.SubmitPending(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.False(t, result.Gated)
	require.Len(t, result.Turns, 2)
	assert.Equal(t, pending, result.Turns[0].Content)
	assert.Nil(t, sess.PendingMessage)

	// A second submit is a no-op.
	again, err := f.svc.SubmitPending(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Len(t, again.Turns, 2)
	f.classifier.AssertNumberOfCalls(t, "Classify", 1)
}

func TestLoadConversationHydratesSession(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	userID := uuid.New()
	convID := uuid.New()

	conv := &models.Conversation{ID: convID, UserID: userID, Title: "Madrid"}
	turns := []models.ConversationTurn{
		{ID: uuid.New(), ConversationID: convID, Role: models.RoleUser, Content: "hola", Kind: models.TurnFinal},
	}
	trip := &models.Trip{
		ID:             uuid.New(),
		UserID:         userID,
		ConversationID: convID,
		Request:        *completeTrip(),
		Document:       *sampleDocument("hecho"),
	}

	f.repo.On("GetConversation", mock.Anything, convID).Return(conv, nil).Once()
	f.repo.On("ListMessages", mock.Anything, convID).Return(turns, nil).Once()
	f.repo.On("GetTripByConversation", mock.Anything, convID).Return(trip, nil).Once()

	err := f.svc.LoadConversation(context.Background(), sess, userID, convID)
	require.NoError(t, err)

	assert.Equal(t, convID, sess.ConversationID)
	assert.Equal(t, StateReady, sess.State)
	require.NotNil(t, sess.Itinerary)
	require.NotNil(t, sess.Snapshot)
	assert.Len(t, sess.Transcript, 1)
	f.repo.AssertExpectations(t)
}

func TestLoadConversationRejectsForeignOwner(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	convID := uuid.New()

	conv := &models.Conversation{ID: convID, UserID: uuid.New()}
	f.repo.On("GetConversation", mock.Anything, convID).Return(conv, nil).Once()

	err := f.svc.LoadConversation(context.Background(), sess, uuid.New(), convID)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, uuid.Nil, sess.ConversationID)
}

func TestLoadConversationDiscardsStaleLoad(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	userID := uuid.New()
	convID := uuid.New()

	conv := &models.Conversation{ID: convID, UserID: userID}
	// A reset lands while the load is in flight; its result must be dropped.
	f.repo.On("GetConversation", mock.Anything, convID).
		Run(func(args mock.Arguments) { sess.Reset() }).
		Return(conv, nil).Once()
	f.repo.On("ListMessages", mock.Anything, convID).
		Return([]models.ConversationTurn{{ID: uuid.New(), Role: models.RoleUser, Content: "hola"}}, nil).Once()
	f.repo.On("GetTripByConversation", mock.Anything, convID).Return(nil, models.ErrNotFound).Once()

	err := f.svc.LoadConversation(context.Background(), sess, userID, convID)
	require.NoError(t, err)

	assert.Equal(t, uuid.Nil, sess.ConversationID)
	assert.Empty(t, sess.Transcript)
}

func TestEnsureConversationTruncatesTitleOnRuneBoundary(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.UserID = uuid.New()

	message := strings.Repeat("ñ", 200)
	var title string
	f.repo.On("CreateConversation", mock.Anything, sess.UserID, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { title = args.String(2) }).
		Return(&models.Conversation{ID: uuid.New(), UserID: sess.UserID}, nil).Once()
	f.repo.On("AppendMessage", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("TouchConversation", mock.Anything, mock.Anything).Return(nil)
	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(incompleteReply("¿Cuándo te gustaría viajar?"), nil).Once()

	_, err := f.svc.HandleMessage(context.Background(), sess, message, true, nil)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, 80, utf8.RuneCountInString(title))
}

func TestFinalTurnWriteWaitsForPlaceholderInsert(t *testing.T) {
	f := newFixture(t)
	sess := NewSession()
	sess.UserID = uuid.New()
	sess.ConversationID = uuid.New()
	trip := completeTrip()
	doc := sampleDocument("Listo el itinerario.")

	release := make(chan struct{})
	updated := make(chan struct{})

	f.classifier.On("Classify", mock.Anything, mock.Anything, mock.Anything).
		Return(completeReply(trip), nil).Once()
	f.generator.On("Generate", mock.Anything, mock.Anything, "").Return(doc, nil).Once()
	// The placeholder insert stalls until released; the final-turn update must
	// queue behind it instead of racing ahead.
	f.repo.On("AppendMessage", mock.Anything, mock.MatchedBy(func(turn models.ConversationTurn) bool {
		return turn.Kind == models.TurnPlaceholder
	})).Run(func(mock.Arguments) { <-release }).Return(nil).Once()
	f.repo.On("AppendMessage", mock.Anything, mock.MatchedBy(func(turn models.ConversationTurn) bool {
		return turn.Kind == models.TurnFinal
	})).Return(nil)
	f.repo.On("TouchConversation", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("UpdateMessage", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(updated) }).Return(nil).Once()
	f.repo.On("SaveTrip", mock.Anything, mock.Anything).
		Return(&models.Trip{ID: uuid.New()}, nil).Once()

	_, err := f.svc.HandleMessage(context.Background(), sess, "Del 1 al 20 de mayo, somos dos", false, nil)
	require.NoError(t, err)

	select {
	case <-updated:
		t.Fatal("final turn written before the placeholder insert finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-updated:
	case <-time.After(2 * time.Second):
		t.Fatal("final turn update never ran")
	}
}
