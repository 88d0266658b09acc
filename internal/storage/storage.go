// Package storage はSQLiteデータベースの接続とスキーマ適用を提供する。
//
// 検査依頼・ユーザー・却下理由・通知は単一のデータベースファイルに保持し、
// スキーマはembedされたマイグレーションファイルから適用する。
package storage

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/nao1215/vistoria/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// Open は指定パスのSQLiteデータベースを開き、マイグレーションを適用する。
// pathには ":memory:" も指定できる（テスト用）。
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	// インメモリDBはコネクションごとに別のデータベースになるため、
	// プールを1本に固定してスキーマを共有する
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return db, nil
}
