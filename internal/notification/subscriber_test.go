package notification

import (
	"strings"
	"testing"

	"github.com/nao1215/vistoria/internal/inspection"
	"github.com/nao1215/vistoria/internal/reason"
	"github.com/nao1215/vistoria/internal/storage"
	"github.com/nao1215/vistoria/internal/user"
	"github.com/nao1215/vistoria/pkg/event"
)

// testEnv は通知サブスクライバーのテストに必要な一式。
type testEnv struct {
	store     *Store
	lifecycle *inspection.Lifecycle
	users     *user.Store
	reasons   *reason.Store
	bus       *event.Bus
}

// setupTestEnv はサブスクライバー登録済みのテスト環境を構築する。
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bus := event.NewBus()
	store := NewStore(db)
	users := user.NewStore(db)
	reasons := reason.NewStore(db)
	repo := inspection.NewRepository(db)

	NewSubscriber(store, repo, users).Register(bus)

	return &testEnv{
		store:     store,
		lifecycle: inspection.NewLifecycle(repo, reasons, bus),
		users:     users,
		reasons:   reasons,
		bus:       bus,
	}
}

// createUser はテストユーザーを1人作成するヘルパー。
func createUser(t *testing.T, env *testEnv, name, email string, role user.Role) *user.User {
	t.Helper()

	u, err := env.users.Create(t.Context(), name, email, "password", role)
	if err != nil {
		t.Fatalf("ユーザー %s の作成に失敗: %v", email, err)
	}
	return u
}

// TestSubscriberOnCreated は作成イベントの検査員ファンアウトを検証する。
func TestSubscriberOnCreated(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	seller := createUser(t, env, "営業", "seller@example.com", user.RoleSeller)
	inspectorA := createUser(t, env, "検査員A", "ia@example.com", user.RoleInspector)
	inspectorB := createUser(t, env, "検査員B", "ib@example.com", user.RoleInspector)

	_, err := env.lifecycle.Create(t.Context(), seller.ID, inspection.CreateInput{
		CustomerName: "João Silva",
		Plate:        "abc-1234",
		VehicleModel: "Fiat Uno",
		VehicleYear:  2018,
		Value:        "12000.50",
	})
	if err != nil {
		t.Fatalf("検査依頼の作成に失敗: %v", err)
	}
	env.bus.Wait()

	// 全検査員に1通ずつ、正規化済みプレートを含む通知が届くこと
	for _, inspectorID := range []string{inspectorA.ID, inspectorB.ID} {
		notifications, err := env.store.ListForUser(t.Context(), inspectorID)
		if err != nil {
			t.Fatalf("ListForUser()でエラーが発生: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("検査員 %s への通知数: got %d, want 1", inspectorID, len(notifications))
		}
		n := notifications[0]
		if n.Title != "Nova vistoria pendente" {
			t.Errorf("Title: got %q, want %q", n.Title, "Nova vistoria pendente")
		}
		if !strings.Contains(n.Message, "ABC1234") {
			t.Errorf("Messageにプレートが含まれていない: %q", n.Message)
		}
	}

	// 依頼元の営業担当者には届かないこと
	notifications, err := env.store.ListForUser(t.Context(), seller.ID)
	if err != nil {
		t.Fatalf("ListForUser()でエラーが発生: %v", err)
	}
	if len(notifications) != 0 {
		t.Errorf("営業担当者への通知数: got %d, want 0", len(notifications))
	}
}

// TestSubscriberOnStatusChanged は判定イベントの営業担当者通知を検証する。
func TestSubscriberOnStatusChanged(t *testing.T) {
	t.Parallel()

	t.Run("承認時は承認テンプレートで1通届く", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		seller := createUser(t, env, "営業", "seller@example.com", user.RoleSeller)

		insp, err := env.lifecycle.Create(t.Context(), seller.ID, inspection.CreateInput{
			CustomerName: "顧客", Plate: "XYZ9876", VehicleModel: "Model X",
			VehicleYear: 2020, Value: "50000",
		})
		if err != nil {
			t.Fatalf("検査依頼の作成に失敗: %v", err)
		}
		env.bus.Wait()

		if _, err := env.lifecycle.ChangeStatus(t.Context(), insp.ID, inspection.ChangeInput{
			Status: inspection.StatusApproved,
		}); err != nil {
			t.Fatalf("ChangeStatus()でエラーが発生: %v", err)
		}
		env.bus.Wait()

		notifications, err := env.store.ListForUser(t.Context(), seller.ID)
		if err != nil {
			t.Fatalf("ListForUser()でエラーが発生: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("通知数: got %d, want 1", len(notifications))
		}
		if notifications[0].Title != "Vistoria aprovada" {
			t.Errorf("Title: got %q, want %q", notifications[0].Title, "Vistoria aprovada")
		}
		if !strings.Contains(notifications[0].Message, "XYZ9876") {
			t.Errorf("Messageにプレートが含まれていない: %q", notifications[0].Message)
		}
	})

	t.Run("却下時は却下テンプレートで1通届く", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t)
		seller := createUser(t, env, "営業", "seller@example.com", user.RoleSeller)

		r, err := env.reasons.Create(t.Context(), "Pneu careca")
		if err != nil {
			t.Fatalf("却下理由の作成に失敗: %v", err)
		}
		insp, err := env.lifecycle.Create(t.Context(), seller.ID, inspection.CreateInput{
			CustomerName: "顧客", Plate: "DEF5678", VehicleModel: "Model Y",
			VehicleYear: 2019, Value: "30000",
		})
		if err != nil {
			t.Fatalf("検査依頼の作成に失敗: %v", err)
		}
		env.bus.Wait()

		if _, err := env.lifecycle.ChangeStatus(t.Context(), insp.ID, inspection.ChangeInput{
			Status:            inspection.StatusRejected,
			RejectionReasonID: &r.ID,
		}); err != nil {
			t.Fatalf("ChangeStatus()でエラーが発生: %v", err)
		}
		env.bus.Wait()

		notifications, err := env.store.ListForUser(t.Context(), seller.ID)
		if err != nil {
			t.Fatalf("ListForUser()でエラーが発生: %v", err)
		}
		if len(notifications) != 1 {
			t.Fatalf("通知数: got %d, want 1", len(notifications))
		}
		if notifications[0].Title != "Vistoria reprovada" {
			t.Errorf("Title: got %q, want %q", notifications[0].Title, "Vistoria reprovada")
		}
	})
}

// TestSubscriberPlateFallback はプレート解決に失敗しても通知が届くことを検証する。
func TestSubscriberPlateFallback(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t)
	inspector := createUser(t, env, "検査員", "inspector@example.com", user.RoleInspector)

	// 存在しない検査依頼を指すイベントを直接発行する
	env.bus.Publish(t.Context(), event.NewInspectionCreated("nonexistent", "seller-x"))
	env.bus.Wait()

	notifications, err := env.store.ListForUser(t.Context(), inspector.ID)
	if err != nil {
		t.Fatalf("ListForUser()でエラーが発生: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("通知数: got %d, want 1", len(notifications))
	}
	if !strings.Contains(notifications[0].Message, "—") {
		t.Errorf("Messageにプレースホルダが含まれていない: %q", notifications[0].Message)
	}
}
