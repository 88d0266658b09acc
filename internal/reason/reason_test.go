package reason

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/vistoria/internal/storage"
)

// setupTestStore はテスト用の却下理由ストアをインメモリSQLiteで構築する。
func setupTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db), db
}

// TestStoreCreate は却下理由の作成を検証する。
func TestStoreCreate(t *testing.T) {
	t.Parallel()

	t.Run("正常に作成できactiveがtrueになる", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		r, err := store.Create(t.Context(), "Pneu careca")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if r.ID == "" {
			t.Error("IDが空")
		}
		if !r.Active {
			t.Error("Active: got false, want true")
		}
	})

	t.Run("重複タイトルはErrTitleTaken", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		if _, err := store.Create(t.Context(), "Vidro trincado"); err != nil {
			t.Fatalf("1件目の作成に失敗: %v", err)
		}
		_, err := store.Create(t.Context(), "Vidro trincado")
		if !errors.Is(err, ErrTitleTaken) {
			t.Errorf("err: got %v, want ErrTitleTaken", err)
		}
	})
}

// TestStoreList は却下理由一覧の取得を検証する。
func TestStoreList(t *testing.T) {
	t.Parallel()

	store, _ := setupTestStore(t)

	for _, title := range []string{"Chassi adulterado", "Pneu careca", "Banco rasgado"} {
		if _, err := store.Create(t.Context(), title); err != nil {
			t.Fatalf("%q の作成に失敗: %v", title, err)
		}
	}

	reasons, err := store.List(t.Context())
	if err != nil {
		t.Fatalf("List()でエラーが発生: %v", err)
	}
	if len(reasons) != 3 {
		t.Fatalf("件数: got %d, want 3", len(reasons))
	}

	// タイトル昇順で返ること
	want := []string{"Banco rasgado", "Chassi adulterado", "Pneu careca"}
	for i, r := range reasons {
		if r.Title != want[i] {
			t.Errorf("reasons[%d].Title: got %q, want %q", i, r.Title, want[i])
		}
	}
}

// TestStoreUpdate は却下理由の更新を検証する。
func TestStoreUpdate(t *testing.T) {
	t.Parallel()

	t.Run("タイトルと有効フラグを更新できる", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		created, err := store.Create(t.Context(), "Pneu careca")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		updated, err := store.Update(t.Context(), created.ID, "Pneu desgastado", false)
		if err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}
		if updated.Title != "Pneu desgastado" {
			t.Errorf("Title: got %q, want %q", updated.Title, "Pneu desgastado")
		}
		if updated.Active {
			t.Error("Active: got true, want false")
		}
	})

	t.Run("存在しないIDはErrNotFound", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		_, err := store.Update(t.Context(), "nonexistent", "タイトル", true)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("err: got %v, want ErrNotFound", err)
		}
	})

	t.Run("他の理由と同じタイトルへの変更はErrTitleTaken", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		if _, err := store.Create(t.Context(), "理由A"); err != nil {
			t.Fatalf("理由Aの作成に失敗: %v", err)
		}
		b, err := store.Create(t.Context(), "理由B")
		if err != nil {
			t.Fatalf("理由Bの作成に失敗: %v", err)
		}

		_, err = store.Update(t.Context(), b.ID, "理由A", true)
		if !errors.Is(err, ErrTitleTaken) {
			t.Errorf("err: got %v, want ErrTitleTaken", err)
		}
	})

	t.Run("自分自身と同じタイトルのままの更新は成功する", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		created, err := store.Create(t.Context(), "理由A")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		if _, err := store.Update(t.Context(), created.ID, "理由A", false); err != nil {
			t.Errorf("Update()でエラーが発生: %v", err)
		}
	})
}

// TestStoreDelete は却下理由の削除と参照制約を検証する。
func TestStoreDelete(t *testing.T) {
	t.Parallel()

	t.Run("参照されていない理由は削除できる", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		created, err := store.Create(t.Context(), "Pneu careca")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		if err := store.Delete(t.Context(), created.ID); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}

		if _, err := store.GetByID(t.Context(), created.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("削除後のGetByID: got %v, want ErrNotFound", err)
		}
	})

	t.Run("検査依頼から参照されている理由はErrReasonInUse", func(t *testing.T) {
		t.Parallel()
		store, db := setupTestStore(t)

		created, err := store.Create(t.Context(), "Chassi adulterado")
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}

		// 理由を参照する検査依頼を直接挿入する
		now := time.Now().UTC()
		_, err = db.ExecContext(t.Context(), `
			INSERT INTO inspections
				(id, seller_id, customer_name, plate, vehicle_model, vehicle_year,
				 value, status, rejection_reason_id, rejection_comment, created_at, updated_at)
			VALUES ('insp-1', 'seller-1', '顧客', 'ABC1234', 'Model X', 2020,
				 '10000.00', 'REJECTED', ?, 'coment', ?, ?)`,
			created.ID, now, now,
		)
		if err != nil {
			t.Fatalf("検査依頼の挿入に失敗: %v", err)
		}

		if err := store.Delete(t.Context(), created.ID); !errors.Is(err, ErrReasonInUse) {
			t.Errorf("err: got %v, want ErrReasonInUse", err)
		}

		// 理由が残っていること
		if _, err := store.GetByID(t.Context(), created.ID); err != nil {
			t.Errorf("参照されている理由が削除されてしまった: %v", err)
		}
	})

	t.Run("存在しないIDはErrNotFound", func(t *testing.T) {
		t.Parallel()
		store, _ := setupTestStore(t)

		if err := store.Delete(t.Context(), "nonexistent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err: got %v, want ErrNotFound", err)
		}
	})
}

// TestStoreSeedDefaults はデモ却下理由の投入の冪等性を検証する。
func TestStoreSeedDefaults(t *testing.T) {
	t.Parallel()

	store, _ := setupTestStore(t)

	if err := store.SeedDefaults(t.Context()); err != nil {
		t.Fatalf("1回目のSeedDefaults()でエラーが発生: %v", err)
	}
	if err := store.SeedDefaults(t.Context()); err != nil {
		t.Fatalf("2回目のSeedDefaults()でエラーが発生: %v", err)
	}

	reasons, err := store.List(t.Context())
	if err != nil {
		t.Fatalf("List()でエラーが発生: %v", err)
	}
	if len(reasons) != 3 {
		t.Errorf("件数: got %d, want 3", len(reasons))
	}
}
