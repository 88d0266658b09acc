package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLite接続を開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBはコネクションごとに別のデータベースになる
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーション適用の基本動作を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("マイグレーションが順序通りに適用されること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		fsys := fstest.MapFS{
			"migrations/000002_add_column.up.sql": &fstest.MapFile{
				Data: []byte("ALTER TABLE items ADD COLUMN note TEXT;"),
			},
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);"),
			},
		}

		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		// 両方のマイグレーションが適用されていること
		if _, err := db.Exec("INSERT INTO items (id, note) VALUES ('a', 'memo')"); err != nil {
			t.Errorf("マイグレーション後のINSERTに失敗: %v", err)
		}
	})

	t.Run("再実行しても適用済みマイグレーションはスキップされること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		fsys := fstest.MapFS{
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);"),
			},
		}

		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		// CREATE TABLEはIF NOT EXISTSなしなので、再適用されれば失敗する
		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("適用済みマイグレーション数: got %d, want 1", count)
		}
	})

	t.Run("不正なSQLでエラーが返り、バージョンが記録されないこと", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		fsys := fstest.MapFS{
			"migrations/000001_broken.up.sql": &fstest.MapFile{
				Data: []byte("THIS IS NOT SQL;"),
			},
		}

		if err := Run(db, fsys, "migrations"); err == nil {
			t.Fatal("不正なSQLでRun()がエラーを返すべき")
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 0 {
			t.Errorf("適用済みマイグレーション数: got %d, want 0", count)
		}
	})

	t.Run("バージョン番号を持たないファイルは無視されること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		fsys := fstest.MapFS{
			"migrations/README.md": &fstest.MapFile{
				Data: []byte("# migrations"),
			},
			"migrations/notes.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE ignored (id TEXT);"),
			},
			"migrations/000001_create_items.up.sql": &fstest.MapFile{
				Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY);"),
			},
		}

		if err := Run(db, fsys, "migrations"); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("適用済みバージョンの取得に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("適用済みマイグレーション数: got %d, want 1", count)
		}
	})
}
