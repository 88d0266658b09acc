package inspection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nao1215/vistoria/internal/reason"
	"github.com/nao1215/vistoria/pkg/event"
)

// Lifecycle は検査依頼の状態遷移を統括するサービス。
// 永続化の成功後にイベントを発行し、通知の配信をサブスクライバーに委ねる。
type Lifecycle struct {
	// repo は検査依頼リポジトリ。
	repo *Repository
	// reasons は却下理由ストア。却下時の理由の実在確認に使用する。
	reasons *reason.Store
	// bus はドメインイベントの発行先。
	bus *event.Bus
}

// NewLifecycle は新しいライフサイクルサービスを生成する。
func NewLifecycle(repo *Repository, reasons *reason.Store, bus *event.Bus) *Lifecycle {
	return &Lifecycle{repo: repo, reasons: reasons, bus: bus}
}

// CreateInput は検査依頼の作成入力を表す。
type CreateInput struct {
	// CustomerName は顧客名。必須。
	CustomerName string
	// Plate はナンバープレート。保存前に正規化される。
	Plate string
	// VehicleModel は車両モデル。必須。
	VehicleModel string
	// VehicleYear は車両年式。1900〜2100の範囲。
	VehicleYear int
	// Value は車両価格の文字列表現（例: "12000.50"）。正の値のみ。
	Value string
}

// validate は作成入力を検証し、車両価格をパースして返す。
func (in CreateInput) validate() (decimal.Decimal, error) {
	if strings.TrimSpace(in.CustomerName) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: 顧客名は必須です", ErrValidation)
	}
	if NormalizePlate(in.Plate) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: ナンバープレートは必須です", ErrValidation)
	}
	if strings.TrimSpace(in.VehicleModel) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: 車両モデルは必須です", ErrValidation)
	}
	if in.VehicleYear < 1900 || in.VehicleYear > 2100 {
		return decimal.Decimal{}, fmt.Errorf("%w: 車両年式は1900〜2100の範囲で指定してください", ErrValidation)
	}
	value, err := decimal.NewFromString(in.Value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: 車両価格の形式が不正です", ErrValidation)
	}
	if !value.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: 車両価格は正の値で指定してください", ErrValidation)
	}
	return value, nil
}

// Create は営業担当者の検査依頼をPENDING状態で作成し、
// 保存の成功後に inspection.created イベントを発行する。
func (l *Lifecycle) Create(ctx context.Context, sellerID string, in CreateInput) (*Inspection, error) {
	value, err := in.validate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	insp := &Inspection{
		ID:           uuid.New().String(),
		SellerID:     sellerID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		Plate:        NormalizePlate(in.Plate),
		VehicleModel: strings.TrimSpace(in.VehicleModel),
		VehicleYear:  in.VehicleYear,
		Value:        value,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := l.repo.Create(ctx, insp); err != nil {
		return nil, err
	}

	l.bus.Publish(ctx, event.NewInspectionCreated(insp.ID, insp.SellerID))
	return insp, nil
}

// ChangeInput はステータス変更の入力を表す。
type ChangeInput struct {
	// Status は遷移先のステータス。APPROVEDまたはREJECTEDのみ。
	Status Status
	// RejectionReasonID は却下理由のID。REJECTEDの場合は必須。
	RejectionReasonID *string
	// RejectionComment は却下時の任意コメント。
	RejectionComment *string
}

// ChangeStatus は検査員の判定を適用する。
//
// 遷移はPENDINGからの一度きりであり、確定後の再判定は
// ErrInvalidStatusTransitionで拒否される。入力検証は一切の書き込みより
// 前に行われ、検証に失敗した依頼は変更されない。イベントは永続化の
// 成功後に一度だけ発行される。
func (l *Lifecycle) ChangeStatus(ctx context.Context, id string, in ChangeInput) (*Inspection, error) {
	if in.Status != StatusApproved && in.Status != StatusRejected {
		return nil, fmt.Errorf("%w: 遷移先はAPPROVEDまたはREJECTEDのみ指定できます", ErrValidation)
	}

	insp, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if insp.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	var reasonID, comment *string
	switch in.Status {
	case StatusRejected:
		if in.RejectionReasonID == nil || *in.RejectionReasonID == "" {
			return nil, ErrRejectionReasonRequired
		}
		if _, err := l.reasons.GetByID(ctx, *in.RejectionReasonID); err != nil {
			if errors.Is(err, reason.ErrNotFound) {
				return nil, ErrReasonNotFound
			}
			return nil, err
		}
		reasonID = in.RejectionReasonID
		comment = in.RejectionComment
	case StatusApproved:
		// 承認時は却下理由とコメントを常に破棄する
	}

	updated, err := l.repo.UpdateStatusIfPending(ctx, id, in.Status, reasonID, comment)
	if err != nil {
		return nil, err
	}
	if !updated {
		// 読み取りから更新までの間に他の判定が確定した
		return nil, ErrInvalidStatusTransition
	}

	result, err := l.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.bus.Publish(ctx, event.NewInspectionStatusChanged(result.ID, result.SellerID, string(result.Status)))
	return result, nil
}
