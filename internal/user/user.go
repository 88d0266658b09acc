// Package user はユーザーの永続化と認証を提供する。
//
// ロールは SELLER（検査依頼を作成する営業担当）と INSPECTOR（承認・却下を
// 行う検査員）の2種類に閉じており、未知のロールは常に拒否される。
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role はユーザーのロールを表す閉じた列挙型。
type Role string

const (
	// RoleSeller は検査依頼を作成する営業担当者。
	RoleSeller Role = "SELLER"
	// RoleInspector は検査依頼を承認・却下する検査員。
	RoleInspector Role = "INSPECTOR"
)

// ParseRole は文字列をRoleに変換する。未知のロールはエラーを返す。
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSeller:
		return RoleSeller, nil
	case RoleInspector:
		return RoleInspector, nil
	default:
		return "", fmt.Errorf("未知のロール: %q", s)
	}
}

// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを表す。
// 列挙攻撃を防ぐため、ユーザー不存在とパスワード不一致を区別しない。
var ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが不正です")

// ErrNotFound は指定されたユーザーが存在しないことを表す。
var ErrNotFound = errors.New("ユーザーが見つかりません")

// User はシステムの利用者を表す。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Name は表示名。
	Name string
	// Email はログイン用メールアドレス。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// Role はユーザーのロール。
	Role Role
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// Store はユーザーの永続化を担当する。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいユーザーストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create は新しいユーザーを作成する。パスワードはbcryptでハッシュ化される。
func (s *Store) Create(ctx context.Context, name, email, password string, role Role) (*User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	u := &User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return u, nil
}

// GetByID は指定されたIDのユーザーを取得する。
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail は指定されたメールアドレスのユーザーを取得する。
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getBy(ctx, "email", email)
}

// getBy は指定されたカラムの値でユーザーを1件取得する共通処理。
func (s *Store) getBy(ctx context.Context, column, value string) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	u.Role = Role(role)
	return &u, nil
}

// ListInspectors は全検査員を取得する。
// 検査依頼作成時の通知ファンアウト先の列挙に使用する。
func (s *Store) ListInspectors(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE role = ? ORDER BY created_at`, string(RoleInspector),
	)
	if err != nil {
		return nil, fmt.Errorf("検査員一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("検査員の読み取りに失敗: %w", err)
		}
		u.Role = Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// Authenticate はメールアドレスとパスワードでユーザーを認証する。
// 認証に失敗した場合はErrInvalidCredentialsを返す。
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SeedDemo はデモ用の営業担当者と検査員を作成する。
// 既に同じメールアドレスのユーザーが存在する場合はスキップする（冪等）。
func (s *Store) SeedDemo(ctx context.Context) error {
	seeds := []struct {
		name, email, password string
		role                  Role
	}{
		{"Vendedor Teste", "vendedor@teste.com", "123456", RoleSeller},
		{"Vistoriador Admin", "admin@teste.com", "123456", RoleInspector},
	}

	for _, seed := range seeds {
		_, err := s.GetByEmail(ctx, seed.email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, err := s.Create(ctx, seed.name, seed.email, seed.password, seed.role); err != nil {
			return err
		}
	}
	return nil
}
