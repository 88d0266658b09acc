package notification

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nao1215/vistoria/internal/inspection"
	"github.com/nao1215/vistoria/internal/user"
	"github.com/nao1215/vistoria/pkg/event"
)

// Subscriber はドメインイベントを購読して通知レコードを作成する。
// 配信はベストエフォートであり、失敗しても発行元の処理には影響しない。
type Subscriber struct {
	// store は通知の書き込み先。
	store *Store
	// inspections は検査依頼のプレート解決に使用する。
	inspections *inspection.Repository
	// users は検査員の列挙に使用する。
	users *user.Store
}

// NewSubscriber は新しい通知サブスクライバーを生成する。
func NewSubscriber(store *Store, inspections *inspection.Repository, users *user.Store) *Subscriber {
	return &Subscriber{store: store, inspections: inspections, users: users}
}

// Register はイベントバスに通知ハンドラを登録する。
func (s *Subscriber) Register(bus *event.Bus) {
	bus.Subscribe(event.KindInspectionCreated, s.handleCreated)
	bus.Subscribe(event.KindInspectionStatusChanged, s.handleStatusChanged)
}

// resolvePlate はイベント対象の検査依頼のプレートを解決する。
// 取得できない場合はプレースホルダを返し、通知自体は継続する。
func (s *Subscriber) resolvePlate(ctx context.Context, inspectionID string) string {
	insp, err := s.inspections.FindByID(ctx, inspectionID)
	if err != nil {
		log.Printf("[Notification] プレートの解決に失敗: inspection_id=%s, err=%v", inspectionID, err)
		return "—"
	}
	return insp.Plate
}

// handleCreated は検査依頼の作成を全検査員にファンアウトで通知する。
// 受信者ごとの書き込みは独立しており、一人への失敗が他をブロックしない。
func (s *Subscriber) handleCreated(ctx context.Context, e event.Event) {
	plate := s.resolvePlate(ctx, e.InspectionID)

	inspectors, err := s.users.ListInspectors(ctx)
	if err != nil {
		log.Printf("[Notification] 検査員一覧の取得に失敗: %v", err)
		return
	}

	message := fmt.Sprintf("Uma nova vistoria foi criada para a placa %s.", plate)

	var wg sync.WaitGroup
	for _, inspector := range inspectors {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := s.store.Create(ctx, userID, "Nova vistoria pendente", message); err != nil {
				log.Printf("[Notification] 通知の作成に失敗: user_id=%s, err=%v", userID, err)
			}
		}(inspector.ID)
	}
	wg.Wait()
}

// handleStatusChanged は判定結果を依頼元の営業担当者に通知する。
func (s *Subscriber) handleStatusChanged(ctx context.Context, e event.Event) {
	plate := s.resolvePlate(ctx, e.InspectionID)

	var title, message string
	if e.Status == string(inspection.StatusApproved) {
		title = "Vistoria aprovada"
		message = fmt.Sprintf("Sua vistoria da placa %s foi aprovada com sucesso.", plate)
	} else {
		title = "Vistoria reprovada"
		message = fmt.Sprintf("Sua vistoria da placa %s foi reprovada. Verifique o motivo informado.", plate)
	}

	if _, err := s.store.Create(ctx, e.SellerID, title, message); err != nil {
		log.Printf("[Notification] 通知の作成に失敗: user_id=%s, err=%v", e.SellerID, err)
	}
}
