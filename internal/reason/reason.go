// Package reason は却下理由カタログの永続化を提供する。
//
// 却下理由は検査員が管理し、検査依頼の却下時に参照される。過去の検査依頼
// から参照されている理由は削除できない（履歴の監査性を保つため）。
package reason

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound は指定された却下理由が存在しないことを表す。
var ErrNotFound = errors.New("却下理由が見つかりません")

// ErrTitleTaken は同じタイトルの却下理由が既に存在することを表す。
var ErrTitleTaken = errors.New("同じタイトルの却下理由が既に存在します")

// ErrReasonInUse は却下理由が検査依頼から参照されており削除できないことを表す。
var ErrReasonInUse = errors.New("検査依頼から参照されている却下理由は削除できません")

// RejectionReason は検査員が却下時に選択する理由のカタログ項目。
type RejectionReason struct {
	// ID は却下理由の一意識別子（UUID）。
	ID string
	// Title は却下理由のタイトル（重複不可）。
	Title string
	// Active は選択可能かどうかの有効フラグ。
	Active bool
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Store は却下理由の永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しい却下理由ストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List は全却下理由をタイトル昇順で取得する。
func (s *Store) List(ctx context.Context) ([]RejectionReason, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, active, created_at, updated_at
		FROM rejection_reasons ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("却下理由一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reasons []RejectionReason
	for rows.Next() {
		var r RejectionReason
		var active int
		if err := rows.Scan(&r.ID, &r.Title, &active, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("却下理由の読み取りに失敗: %w", err)
		}
		r.Active = active != 0
		reasons = append(reasons, r)
	}
	return reasons, rows.Err()
}

// GetByID は指定されたIDの却下理由を取得する。
func (s *Store) GetByID(ctx context.Context, id string) (*RejectionReason, error) {
	var r RejectionReason
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, active, created_at, updated_at
		FROM rejection_reasons WHERE id = ?`, id,
	).Scan(&r.ID, &r.Title, &active, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("却下理由の取得に失敗: %w", err)
	}
	r.Active = active != 0
	return &r, nil
}

// Create は新しい却下理由を作成する。タイトルの重複はErrTitleTakenを返す。
func (s *Store) Create(ctx context.Context, title string) (*RejectionReason, error) {
	taken, err := s.titleExists(ctx, title, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTitleTaken
	}

	now := time.Now().UTC()
	r := &RejectionReason{
		ID:        uuid.New().String(),
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rejection_reasons (id, title, active, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)`,
		r.ID, r.Title, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("却下理由の作成に失敗: %w", err)
	}
	return r, nil
}

// Update は却下理由のタイトルと有効フラグを更新する。
func (s *Store) Update(ctx context.Context, id, title string, active bool) (*RejectionReason, error) {
	taken, err := s.titleExists(ctx, title, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrTitleTaken
	}

	activeInt := 0
	if active {
		activeInt = 1
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE rejection_reasons
		SET title = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		title, activeInt, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("却下理由の更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("更新結果の取得に失敗: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetByID(ctx, id)
}

// Delete は却下理由を削除する。
// 検査依頼から参照されている理由はErrReasonInUseを返して削除を拒否する。
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var refs int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM inspections WHERE rejection_reason_id = ?", id,
	).Scan(&refs)
	if err != nil {
		return fmt.Errorf("参照数の取得に失敗: %w", err)
	}
	if refs > 0 {
		return ErrReasonInUse
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM rejection_reasons WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("却下理由の削除に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// titleExists は指定されたタイトルが他の却下理由で使用されているかを判定する。
// excludeIDに一致するレコードは判定から除外する（更新時の自分自身）。
func (s *Store) titleExists(ctx context.Context, title, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rejection_reasons WHERE title = ? AND id != ?",
		title, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("タイトル重複の確認に失敗: %w", err)
	}
	return count > 0, nil
}

// SeedDefaults はデモ用の却下理由を作成する。
// 既に同じタイトルが存在する場合はスキップする（冪等）。
func (s *Store) SeedDefaults(ctx context.Context) error {
	titles := []string{"Pneu careca", "Chassi adulterado", "Vidro trincado"}
	for _, title := range titles {
		_, err := s.Create(ctx, title)
		if err != nil && !errors.Is(err, ErrTitleTaken) {
			return err
		}
	}
	return nil
}
