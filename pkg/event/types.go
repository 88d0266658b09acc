package event

// Kind はドメインイベントの種類を表す。
type Kind string

const (
	// KindInspectionCreated は検査依頼が新規作成されたことを表す。
	KindInspectionCreated Kind = "inspection.created"
	// KindInspectionStatusChanged は検査依頼のステータスが確定したことを表す。
	KindInspectionStatusChanged Kind = "inspection.status_changed"
)

// Event はコミット済みの状態変更を表すドメインイベント。
// 永続化されず、バス上にのみ存在する一時的な事実である。
type Event struct {
	// Kind はイベントの種類。
	Kind Kind
	// InspectionID は対象の検査依頼ID。
	InspectionID string
	// SellerID は検査依頼を所有する営業担当者のユーザーID。
	SellerID string
	// Status は確定後のステータス（"APPROVED" または "REJECTED"）。
	// KindInspectionStatusChanged の場合のみ設定される。
	Status string
}

// NewInspectionCreated はinspection.createdイベントを生成する。
func NewInspectionCreated(inspectionID, sellerID string) Event {
	return Event{
		Kind:         KindInspectionCreated,
		InspectionID: inspectionID,
		SellerID:     sellerID,
	}
}

// NewInspectionStatusChanged はinspection.status_changedイベントを生成する。
func NewInspectionStatusChanged(inspectionID, sellerID, status string) Event {
	return Event{
		Kind:         KindInspectionStatusChanged,
		InspectionID: inspectionID,
		SellerID:     sellerID,
		Status:       status,
	}
}
