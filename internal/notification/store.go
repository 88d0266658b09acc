// Package notification は通知レコードの永続化とイベント購読を提供する。
//
// 通知はドメインイベントに反応してサブスクライバーだけが作成する。
// 受信者本人のみが閲覧でき、既読化は一度きりかつ冪等である。
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification はユーザー宛の通知レコードを表す。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string
	// UserID は受信者のユーザーID。
	UserID string
	// Title は通知のタイトル。
	Title string
	// Message は通知の本文。
	Message string
	// ReadAt は既読日時。nilは未読を表す。
	ReadAt *time.Time
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// listLimit は1ユーザーあたりの一覧取得上限。
const listLimit = 50

// Store は通知の永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しい通知ストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create はユーザー宛の通知を作成する。
func (s *Store) Create(ctx context.Context, userID, title, message string) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, read_at, created_at)
		VALUES (?, ?, ?, ?, NULL, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("通知の作成に失敗: %w", err)
	}
	return n, nil
}

// ListForUser は指定ユーザーの通知を作成日時の降順で最大50件取得する。
func (s *Store) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, read_at, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`, userID, listLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notifications := []Notification{}
	for rows.Next() {
		var n Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("通知の読み取りに失敗: %w", err)
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount は指定ユーザーの未読通知数を返す。
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("未読数の取得に失敗: %w", err)
	}
	return count, nil
}

// MarkAsRead は指定ユーザーが所有する未読通知を既読にする。
// 既読済み・他人の通知・存在しないIDのいずれも更新なし（冪等）として
// 扱い、エラーにはしない。更新が行われた場合はtrueを返す。
func (s *Store) MarkAsRead(ctx context.Context, userID, notificationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ?
		WHERE id = ? AND user_id = ? AND read_at IS NULL`,
		time.Now().UTC(), notificationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("通知の既読化に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("既読化結果の取得に失敗: %w", err)
	}
	return affected > 0, nil
}
