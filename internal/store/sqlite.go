package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/aice-relay/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, retry RetryPolicy) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: retry}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		preferred_tone TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_rooms (
		room_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_rooms_owner ON chat_rooms(owner_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		message_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		filtered_content TEXT,
		trace_id TEXT,
		turn_index INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_room_turn ON chat_messages(room_id, turn_index);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_chat_messages_assistant_turn
		ON chat_messages(room_id, turn_index) WHERE role = 'assistant';
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, preferred_tone, created_at, updated_at
		FROM users WHERE user_id = ?`

	var user domain.User
	var tone sql.NullString
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Username, &tone, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.PreferredTone = domain.Tone(tone.String)
	user.CreatedAt = time.UnixMilli(createdAt)
	user.UpdatedAt = time.UnixMilli(updatedAt)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, preferred_tone, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		preferred_tone = excluded.preferred_tone,
		updated_at = excluded.updated_at`

	var tone interface{}
	if user.PreferredTone != "" {
		tone = string(user.PreferredTone)
	}

	return withRetry(ctx, s.retry, "upsert_user", func() error {
		_, err := s.db.ExecContext(ctx, query,
			user.UserID, user.Username, tone,
			user.CreatedAt.UnixMilli(), user.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// CreateRoom inserts a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	query := `
	INSERT INTO chat_rooms (room_id, owner_id, title, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`

	return withRetry(ctx, s.retry, "create_room", func() error {
		_, err := s.db.ExecContext(ctx, query,
			room.RoomID, room.OwnerID, room.Title,
			room.CreatedAt.UnixMilli(), room.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert room: %w", err)
		}
		return nil
	})
}

// GetRoom retrieves a room by ID.
func (s *SQLiteStore) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	query := `
		SELECT room_id, owner_id, title, created_at, updated_at
		FROM chat_rooms WHERE room_id = ?`

	room, err := scanRoom(s.db.QueryRowContext(ctx, query, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan room row: %w", err)
	}
	return room, nil
}

// ListRooms returns the rooms owned by ownerID, newest first.
func (s *SQLiteStore) ListRooms(ctx context.Context, ownerID string) ([]*domain.Room, error) {
	query := `
		SELECT room_id, owner_id, title, created_at, updated_at
		FROM chat_rooms WHERE owner_id = ?
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close room rows", "error", closeErr)
		}
	}()

	var rooms []*domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoomTitle sets the title of a room.
func (s *SQLiteStore) UpdateRoomTitle(ctx context.Context, roomID, title string) error {
	query := `UPDATE chat_rooms SET title = ?, updated_at = ? WHERE room_id = ?`

	return withRetry(ctx, s.retry, "update_room_title", func() error {
		result, err := s.db.ExecContext(ctx, query, title, time.Now().UnixMilli(), roomID)
		if err != nil {
			return fmt.Errorf("update room title: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Warn("UpdateRoomTitle affected 0 rows", "room_id", roomID)
		}
		return nil
	})
}

// InsertMessage persists a message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *domain.Message) error {
	query := `
	INSERT INTO chat_messages (message_id, room_id, author_id, role, content,
		filtered_content, trace_id, turn_index, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var filtered interface{}
	if msg.FilteredContent != "" {
		filtered = msg.FilteredContent
	}

	return withRetry(ctx, s.retry, "insert_message", func() error {
		_, err := s.db.ExecContext(ctx, query,
			msg.MessageID, msg.RoomID, msg.AuthorID, string(msg.Role), msg.Content,
			filtered, msg.TraceID, msg.TurnIndex, msg.CreatedAt.UnixMilli(),
		)
		if isSQLiteUniqueViolation(err) && msg.Role == domain.RoleAssistant {
			return ErrDuplicateAssistant
		}
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `
		SELECT message_id, room_id, author_id, role, content, filtered_content,
		       trace_id, turn_index, created_at
		FROM chat_messages WHERE message_id = ?`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	return msg, nil
}

// ListMessages returns a room's messages ordered by turn, user before assistant.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]*domain.Message, error) {
	query := `
		SELECT message_id, room_id, author_id, role, content, filtered_content,
		       trace_id, turn_index, created_at
		FROM chat_messages WHERE room_id = ?
		ORDER BY turn_index ASC, CASE role WHEN 'user' THEN 0 ELSE 1 END, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
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
func (s *SQLiteStore) MaxTurnIndex(ctx context.Context, roomID string) (int, error) {
	var maxTurn sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(turn_index) FROM chat_messages WHERE room_id = ?`, roomID,
	).Scan(&maxTurn)
	if err != nil {
		return 0, fmt.Errorf("query max turn index: %w", err)
	}
	return int(maxTurn.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*domain.Room, error) {
	var room domain.Room
	var createdAt, updatedAt int64
	if err := row.Scan(&room.RoomID, &room.OwnerID, &room.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	room.CreatedAt = time.UnixMilli(createdAt)
	room.UpdatedAt = time.UnixMilli(updatedAt)
	return &room, nil
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var role string
	var filtered, traceID sql.NullString
	var createdAt int64
	if err := row.Scan(
		&msg.MessageID, &msg.RoomID, &msg.AuthorID, &role, &msg.Content,
		&filtered, &traceID, &msg.TurnIndex, &createdAt,
	); err != nil {
		return nil, err
	}
	msg.Role = domain.Role(role)
	msg.FilteredContent = filtered.String
	msg.TraceID = traceID.String
	msg.CreatedAt = time.UnixMilli(createdAt)
	return &msg, nil
}
