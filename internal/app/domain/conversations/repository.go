package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/app/observability/metrics"
)

// Ensure RepositoryImpl implements the Repository interface
var _ Repository = (*RepositoryImpl)(nil)

// Repository defines the persistence adapter for conversations, messages and
// trips. Message logging is best-effort from the caller's point of view; trip
// saves are strict.
type Repository interface {
	CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, userID, id uuid.UUID) error
	TouchConversation(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, turn models.ConversationTurn) error
	UpdateMessage(ctx context.Context, turn models.ConversationTurn) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationTurn, error)

	SaveTrip(ctx context.Context, trip *models.Trip) (*models.Trip, error)
	GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	GetTripByConversation(ctx context.Context, conversationID uuid.UUID) (*models.Trip, error)
	AddTripItem(ctx context.Context, item models.AddedItem) (*models.AddedItem, error)
	ListTripItems(ctx context.Context, tripID uuid.UUID) ([]models.AddedItem, error)
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RepositoryImpl holds the logger and database connection pool
type RepositoryImpl struct {
	logger *zap.Logger
	pgpool DB
}

func NewRepository(pgxpool *pgxpool.Pool, logger *zap.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgxpool,
	}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *RepositoryImpl) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
        INSERT INTO conversations (user_id, title)
        VALUES ($1, $2)
        RETURNING id, user_id, title, created_at, updated_at`
	err := r.pgpool.QueryRow(ctx, query, userID, title).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (r *RepositoryImpl) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
        SELECT id, user_id, title, created_at, updated_at
        FROM conversations
        WHERE id = $1`
	err := r.pgpool.QueryRow(ctx, query, id).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns a user's conversations, newest first, with an
// optional title search.
func (r *RepositoryImpl) ListConversations(ctx context.Context, userID uuid.UUID, search string, limit, offset int) ([]*models.Conversation, error) {
	builder := psql.
		Select("id", "user_id", "title", "created_at", "updated_at").
		From("conversations").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC")

	if search != "" {
		builder = builder.Where(sq.ILike{"title": "%" + search + "%"})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build conversations query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var out []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (r *RepositoryImpl) DeleteConversation(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *RepositoryImpl) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func (r *RepositoryImpl) AppendMessage(ctx context.Context, turn models.ConversationTurn) error {
	var itinerary []byte
	if turn.Itinerary != nil {
		var err error
		itinerary, err = json.Marshal(turn.Itinerary)
		if err != nil {
			return fmt.Errorf("failed to encode message itinerary: %w", err)
		}
	}
	_, err := r.pgpool.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, role, content, kind, itinerary, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.ConversationID, turn.Role, turn.Content, turn.Kind, itinerary, turn.CreatedAt)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// UpdateMessage rewrites a message in place. Used once per generation, when the
// placeholder turn resolves to its final content.
func (r *RepositoryImpl) UpdateMessage(ctx context.Context, turn models.ConversationTurn) error {
	var itinerary []byte
	if turn.Itinerary != nil {
		var err error
		itinerary, err = json.Marshal(turn.Itinerary)
		if err != nil {
			return fmt.Errorf("failed to encode message itinerary: %w", err)
		}
	}
	tag, err := r.pgpool.Exec(ctx, `
        UPDATE messages SET content = $2, kind = $3, itinerary = $4 WHERE id = $1`,
		turn.ID, turn.Content, turn.Kind, itinerary)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *RepositoryImpl) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationTurn, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT id, conversation_id, role, content, kind, itinerary, created_at
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at ASC`, conversationID)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []models.ConversationTurn
	for rows.Next() {
		var turn models.ConversationTurn
		var itinerary []byte
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Role, &turn.Content, &turn.Kind, &itinerary, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if len(itinerary) > 0 {
			doc := &models.ItineraryDocument{}
			if err := json.Unmarshal(itinerary, doc); err != nil {
				r.logger.Warn("Failed to decode stored itinerary on message",
					zap.String("message_id", turn.ID.String()),
					zap.Error(err))
			} else {
				turn.Itinerary = doc
			}
		}
		out = append(out, turn)
	}
	return out, rows.Err()
}

// SaveTrip upserts the trip for a conversation. Regeneration replaces the
// stored document wholesale.
func (r *RepositoryImpl) SaveTrip(ctx context.Context, trip *models.Trip) (*models.Trip, error) {
	request, err := json.Marshal(trip.Request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trip request: %w", err)
	}
	document, err := json.Marshal(trip.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trip document: %w", err)
	}

	saved := &models.Trip{Request: trip.Request, Document: trip.Document}
	err = r.pgpool.QueryRow(ctx, `
        INSERT INTO trips (user_id, conversation_id, title, request, document)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (conversation_id) DO UPDATE
            SET title = EXCLUDED.title,
                request = EXCLUDED.request,
                document = EXCLUDED.document,
                updated_at = now()
        RETURNING id, user_id, conversation_id, title, created_at, updated_at`,
		trip.UserID, trip.ConversationID, trip.Title, request, document).
		Scan(&saved.ID, &saved.UserID, &saved.ConversationID, &saved.Title, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to save trip: %w", err)
	}
	return saved, nil
}

func (r *RepositoryImpl) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	return r.getTrip(ctx, `WHERE id = $1`, id)
}

func (r *RepositoryImpl) GetTripByConversation(ctx context.Context, conversationID uuid.UUID) (*models.Trip, error) {
	return r.getTrip(ctx, `WHERE conversation_id = $1`, conversationID)
}

func (r *RepositoryImpl) getTrip(ctx context.Context, where string, arg any) (*models.Trip, error) {
	trip := &models.Trip{}
	var request, document []byte
	query := `
        SELECT id, user_id, conversation_id, title, request, document, created_at, updated_at
        FROM trips ` + where
	err := r.pgpool.QueryRow(ctx, query, arg).
		Scan(&trip.ID, &trip.UserID, &trip.ConversationID, &trip.Title, &request, &document, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if err := json.Unmarshal(request, &trip.Request); err != nil {
		return nil, fmt.Errorf("failed to decode trip request: %w", err)
	}
	if err := json.Unmarshal(document, &trip.Document); err != nil {
		return nil, fmt.Errorf("failed to decode trip document: %w", err)
	}
	return trip, nil
}

func (r *RepositoryImpl) AddTripItem(ctx context.Context, item models.AddedItem) (*models.AddedItem, error) {
	saved := item
	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO trip_items (trip_id, item_type, day, item_time, name, price)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (trip_id, item_type, day, item_time) DO UPDATE
            SET name = EXCLUDED.name, price = EXCLUDED.price
        RETURNING id`,
		item.TripID, item.Type, item.Day, item.Time, item.Name, item.Price).
		Scan(&saved.ID)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to add trip item: %w", err)
	}
	return &saved, nil
}

func (r *RepositoryImpl) ListTripItems(ctx context.Context, tripID uuid.UUID) ([]models.AddedItem, error) {
	rows, err := r.pgpool.Query(ctx, `
        SELECT id, trip_id, item_type, day, item_time, name, price
        FROM trip_items
        WHERE trip_id = $1
        ORDER BY day, item_time`, tripID)
	if err != nil {
		metrics.Get().DBQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to list trip items: %w", err)
	}
	defer rows.Close()

	var out []models.AddedItem
	for rows.Next() {
		var item models.AddedItem
		if err := rows.Scan(&item.ID, &item.TripID, &item.Type, &item.Day, &item.Time, &item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan trip item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
