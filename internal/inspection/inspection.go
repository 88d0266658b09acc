// Package inspection は車両検査依頼のライフサイクルを提供する。
//
// 検査依頼は営業担当者がPENDING状態で作成し、検査員が一度だけ
// APPROVEDまたはREJECTEDに確定させる。確定後の状態は終端であり、
// いかなる再変更も許可されない。
package inspection

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nao1215/vistoria/internal/reason"
)

// Status は検査依頼のステータスを表す閉じた列挙型。
type Status string

const (
	// StatusPending は検査員の判定待ちであることを表す。初期状態。
	StatusPending Status = "PENDING"
	// StatusApproved は検査員が承認したことを表す。終端状態。
	StatusApproved Status = "APPROVED"
	// StatusRejected は検査員が却下したことを表す。終端状態。
	StatusRejected Status = "REJECTED"
)

// ParseStatus は文字列をStatusに変換する。未知のステータスはエラーを返す。
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(s), nil
	default:
		return "", errors.New("未知のステータス: " + s)
	}
}

// IsTerminal はステータスが終端（これ以上変更不可）かどうかを返す。
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ErrNotFound は指定された検査依頼が存在しないことを表す。
var ErrNotFound = errors.New("検査依頼が見つかりません")

// ErrInvalidStatusTransition はPENDING以外の状態からの遷移が要求されたことを表す。
// APPROVEDとREJECTEDは終端状態であり、再承認・再却下も許可されない。
var ErrInvalidStatusTransition = errors.New("このステータスからの遷移は許可されていません")

// ErrRejectionReasonRequired は却下時に却下理由が指定されていないことを表す。
var ErrRejectionReasonRequired = errors.New("却下には却下理由の指定が必要です")

// ErrReasonNotFound は指定された却下理由が存在しないことを表す。
var ErrReasonNotFound = errors.New("指定された却下理由が存在しません")

// ErrValidation は入力値の検証エラーを表す。
// 詳細メッセージはfmt.Errorfでラップして付与する。
var ErrValidation = errors.New("入力値が不正です")

// Inspection は車両検査依頼を表す。
type Inspection struct {
	// ID は検査依頼の一意識別子（UUID）。
	ID string
	// SellerID は依頼を作成した営業担当者のユーザーID。作成後は不変。
	SellerID string
	// CustomerName は顧客名。
	CustomerName string
	// Plate は正規化済みのナンバープレート（大文字英数字のみ）。
	Plate string
	// VehicleModel は車両モデル。
	VehicleModel string
	// VehicleYear は車両年式。
	VehicleYear int
	// Value は車両価格。丸め誤差を避けるため10進数で保持する。
	Value decimal.Decimal
	// Status は検査依頼のステータス。
	Status Status
	// RejectionReasonID は却下理由のID。status = REJECTED の場合のみ非nil。
	RejectionReasonID *string
	// RejectionComment は却下時の任意コメント。status = REJECTED の場合のみ非nil。
	RejectionComment *string
	// RejectionReason は解決済みの却下理由参照。RejectionReasonIDが非nilの場合に設定される。
	RejectionReason *reason.RejectionReason
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// NormalizePlate はナンバープレートを正規化する。
// 大文字化し、英数字以外の文字を取り除く。冪等である。
func NormalizePlate(plate string) string {
	var b strings.Builder
	b.Grow(len(plate))
	for _, r := range strings.ToUpper(plate) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
