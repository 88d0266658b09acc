package storage

import (
	"path/filepath"
	"testing"
)

// TestOpen はデータベースのオープンとスキーマ適用を検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("インメモリDBを開いてスキーマが適用されること", func(t *testing.T) {
		t.Parallel()

		db, err := Open(":memory:")
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		// 主要テーブルが存在すること
		for _, table := range []string{"users", "inspections", "rejection_reasons", "notifications"} {
			var name string
			err := db.QueryRow(
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
			).Scan(&name)
			if err != nil {
				t.Errorf("テーブル %s が存在しない: %v", table, err)
			}
		}
	})

	t.Run("ファイルDBを開けること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "vistoria.db")
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		t.Cleanup(func() { db.Close() })

		// 再オープンしてもマイグレーションが二重適用されないこと
		db2, err := Open(path)
		if err != nil {
			t.Fatalf("再オープンでエラーが発生: %v", err)
		}
		t.Cleanup(func() { db2.Close() })
	})
}
