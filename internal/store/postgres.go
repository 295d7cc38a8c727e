package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ Repository = (*PostgresStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)

const pgUniqueViolation = "23505"

// PostgresStore implements Repository on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			preferred_tone TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_rooms (
			room_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_rooms_owner ON chat_rooms(owner_id)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			role VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			filtered_content TEXT,
			trace_id VARCHAR(64),
			turn_index INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_room_turn ON chat_messages(room_id, turn_index)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_messages_assistant_turn
			ON chat_messages(room_id, turn_index) WHERE role = 'assistant'`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *PostgresStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, COALESCE(preferred_tone, ''), created_at, updated_at
		FROM users WHERE user_id = $1`

	var user domain.User
	var tone string
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &tone, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.PreferredTone = domain.Tone(tone)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *PostgresStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, preferred_tone, created_at, updated_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5)
	ON CONFLICT (user_id) DO UPDATE SET
		username = EXCLUDED.username,
		preferred_tone = EXCLUDED.preferred_tone,
		updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query,
		user.UserID, user.Username, string(user.PreferredTone), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// CreateRoom inserts a new room.
func (s *PostgresStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	query := `
	INSERT INTO chat_rooms (room_id, owner_id, title, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.Exec(ctx, query,
		room.RoomID, room.OwnerID, room.Title, room.CreatedAt, room.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	query := `
		SELECT room_id, owner_id, title, created_at, updated_at
		FROM chat_rooms WHERE room_id = $1`

	var room domain.Room
	err := s.db.QueryRow(ctx, query, roomID).Scan(
		&room.RoomID, &room.OwnerID, &room.Title, &room.CreatedAt, &room.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan room row: %w", err)
	}
	return &room, nil
}

// ListRooms returns the rooms owned by ownerID, newest first.
func (s *PostgresStore) ListRooms(ctx context.Context, ownerID string) ([]*domain.Room, error) {
	query := `
		SELECT room_id, owner_id, title, created_at, updated_at
		FROM chat_rooms WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.RoomID, &room.OwnerID, &room.Title, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoomTitle sets the title of a room.
func (s *PostgresStore) UpdateRoomTitle(ctx context.Context, roomID, title string) error {
	query := `UPDATE chat_rooms SET title = $1, updated_at = NOW() WHERE room_id = $2`
	if _, err := s.db.Exec(ctx, query, title, roomID); err != nil {
		return fmt.Errorf("update room title: %w", err)
	}
	return nil
}

// InsertMessage persists a message.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	query := `
	INSERT INTO chat_messages (message_id, room_id, author_id, role, content,
		filtered_content, trace_id, turn_index, created_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`

	_, err := s.db.Exec(ctx, query,
		msg.MessageID, msg.RoomID, msg.AuthorID, string(msg.Role), msg.Content,
		msg.FilteredContent, msg.TraceID, msg.TurnIndex, msg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && msg.Role == domain.RoleAssistant {
			return ErrDuplicateAssistant
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `
		SELECT message_id, room_id, author_id, role, content,
		       COALESCE(filtered_content, ''), COALESCE(trace_id, ''), turn_index, created_at
		FROM chat_messages WHERE message_id = $1`

	msg, err := scanPgMessage(s.db.QueryRow(ctx, query, messageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	return msg, nil
}

// ListMessages returns a room's messages ordered by turn, user before assistant.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error) {
	query := `
		SELECT message_id, room_id, author_id, role, content,
		       COALESCE(filtered_content, ''), COALESCE(trace_id, ''), turn_index, created_at
		FROM chat_messages WHERE room_id = $1
		ORDER BY turn_index ASC, CASE role WHEN 'user' THEN 0 ELSE 1 END, created_at ASC`

	rows, err := s.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanPgMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MaxTurnIndex returns the highest persisted turn index in a room, or 0.
func (s *PostgresStore) MaxTurnIndex(ctx context.Context, roomID string) (int, error) {
	var maxTurn int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(turn_index), 0) FROM chat_messages WHERE room_id = $1`, roomID,
	).Scan(&maxTurn)
	if err != nil {
		return 0, fmt.Errorf("query max turn index: %w", err)
	}
	return maxTurn, nil
}

func scanPgMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var role string
	if err := row.Scan(
		&msg.MessageID, &msg.RoomID, &msg.AuthorID, &role, &msg.Content,
		&msg.FilteredContent, &msg.TraceID, &msg.TurnIndex, &msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.Role = domain.Role(role)
	return &msg, nil
}
