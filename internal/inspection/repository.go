package inspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nao1215/vistoria/internal/reason"
	"github.com/nao1215/vistoria/internal/user"
)

// Repository は検査依頼の永続化を担当する。
type Repository struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewRepository は新しい検査依頼リポジトリを生成する。
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// selectColumns は検査依頼の取得クエリで共通のSELECT句。
// 却下理由はLEFT JOINで解決する。
const selectColumns = `
	SELECT i.id, i.seller_id, i.customer_name, i.plate, i.vehicle_model,
	       i.vehicle_year, i.value, i.status, i.rejection_reason_id,
	       i.rejection_comment, i.created_at, i.updated_at,
	       r.id, r.title, r.active, r.created_at, r.updated_at
	FROM inspections i
	LEFT JOIN rejection_reasons r ON r.id = i.rejection_reason_id`

// scanInspection は1行を検査依頼に読み取る。
// rowは*sql.Rowと*sql.Rowsの両方に対応する。
func scanInspection(row interface{ Scan(dest ...any) error }) (*Inspection, error) {
	var (
		insp          Inspection
		value         string
		reasonID      sql.NullString
		comment       sql.NullString
		rID, rTitle   sql.NullString
		rActive       sql.NullInt64
		rCreated      sql.NullTime
		rUpdated      sql.NullTime
	)
	err := row.Scan(
		&insp.ID, &insp.SellerID, &insp.CustomerName, &insp.Plate,
		&insp.VehicleModel, &insp.VehicleYear, &value, (*string)(&insp.Status),
		&reasonID, &comment, &insp.CreatedAt, &insp.UpdatedAt,
		&rID, &rTitle, &rActive, &rCreated, &rUpdated,
	)
	if err != nil {
		return nil, err
	}

	insp.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("車両価格の読み取りに失敗: %w", err)
	}
	if reasonID.Valid {
		insp.RejectionReasonID = &reasonID.String
	}
	if comment.Valid {
		insp.RejectionComment = &comment.String
	}
	if rID.Valid {
		insp.RejectionReason = &reason.RejectionReason{
			ID:        rID.String,
			Title:     rTitle.String,
			Active:    rActive.Int64 != 0,
			CreatedAt: rCreated.Time,
			UpdatedAt: rUpdated.Time,
		}
	}
	return &insp, nil
}

// Create は検査依頼を保存する。
func (r *Repository) Create(ctx context.Context, insp *Inspection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inspections
			(id, seller_id, customer_name, plate, vehicle_model, vehicle_year,
			 value, status, rejection_reason_id, rejection_comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insp.ID, insp.SellerID, insp.CustomerName, insp.Plate, insp.VehicleModel,
		insp.VehicleYear, insp.Value.String(), string(insp.Status),
		insp.RejectionReasonID, insp.RejectionComment, insp.CreatedAt, insp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("検査依頼の保存に失敗: %w", err)
	}
	return nil
}

// FindByID は指定されたIDの検査依頼を取得する。
func (r *Repository) FindByID(ctx context.Context, id string) (*Inspection, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE i.id = ?", id)
	insp, err := scanInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("検査依頼の取得に失敗: %w", err)
	}
	return insp, nil
}

// UpdateStatusIfPending はPENDING状態の検査依頼に限ってステータスを更新する。
// 条件付きUPDATEにより、並行する判定要求のうち先に確定した1件だけが成功する。
// 更新が行われた場合はtrueを返す。
func (r *Repository) UpdateStatusIfPending(ctx context.Context, id string, status Status, reasonID, comment *string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inspections
		SET status = ?, rejection_reason_id = ?, rejection_comment = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(status), reasonID, comment, time.Now().UTC(), id, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("検査依頼の更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新結果の取得に失敗: %w", err)
	}
	return affected > 0, nil
}

// Filter は検査依頼一覧の絞り込み条件を表す。
type Filter struct {
	// Role は呼び出し元のロール。SELLERは自分の依頼のみに制限される。
	Role user.Role
	// UserID は呼び出し元のユーザーID。
	UserID string
	// Status はステータスでの絞り込み。空の場合は絞り込まない。
	Status Status
	// Query はナンバープレートまたは顧客名の部分一致検索キーワード。
	Query string
	// Plate はナンバープレートの部分一致絞り込み。検索前に正規化される。
	Plate string
	// Page は1始まりのページ番号。
	Page int
	// PerPage は1ページあたりの件数。
	PerPage int
}

// Meta は一覧のページネーション情報を表す。
type Meta struct {
	// Page は現在のページ番号。
	Page int `json:"page"`
	// PerPage は1ページあたりの件数。
	PerPage int `json:"per_page"`
	// Total は絞り込み後の総件数。
	Total int `json:"total"`
	// TotalPages は総ページ数（切り上げ）。
	TotalPages int `json:"total_pages"`
}

// Page は検査依頼の1ページ分の取得結果を表す。
type Page struct {
	// Items は作成日時の降順で並んだ検査依頼。
	Items []Inspection
	// Meta はページネーション情報。
	Meta Meta
}

// List は絞り込み条件に一致する検査依頼を作成日時の降順で1ページ分取得する。
// ロールによるスコープ制限はすべての絞り込み条件より優先される。
func (r *Repository) List(ctx context.Context, f Filter) (*Page, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM inspections i" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("検査依頼の件数取得に失敗: %w", err)
	}

	query := selectColumns + where + " ORDER BY i.created_at DESC, i.id LIMIT ? OFFSET ?"
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("検査依頼一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []Inspection{}
	for rows.Next() {
		insp, err := scanInspection(rows)
		if err != nil {
			return nil, fmt.Errorf("検査依頼の読み取りに失敗: %w", err)
		}
		items = append(items, *insp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{
		Items: items,
		Meta: Meta{
			Page:       f.Page,
			PerPage:    f.PerPage,
			Total:      total,
			TotalPages: (total + f.PerPage - 1) / f.PerPage,
		},
	}, nil
}

// buildWhere は絞り込み条件からWHERE句とバインド引数を構築する。
func buildWhere(f Filter) (string, []any, error) {
	var conds []string
	var args []any

	// ロールによるスコープ制限。未知のロールは決して全件を見せない。
	switch f.Role {
	case user.RoleSeller:
		conds = append(conds, "i.seller_id = ?")
		args = append(args, f.UserID)
	case user.RoleInspector:
		// 検査員は全件を閲覧できる
	default:
		return "", nil, fmt.Errorf("未知のロール: %q", f.Role)
	}

	if f.Status != "" {
		conds = append(conds, "i.status = ?")
		args = append(args, string(f.Status))
	}

	// qはプレートと顧客名を横断検索する。qがある場合plateは無視する。
	if f.Query != "" {
		conds = append(conds, "(i.plate LIKE '%' || ? || '%' OR i.customer_name LIKE '%' || ? || '%' COLLATE NOCASE)")
		args = append(args, NormalizePlate(f.Query), f.Query)
	} else if f.Plate != "" {
		conds = append(conds, "i.plate LIKE '%' || ? || '%'")
		args = append(args, NormalizePlate(f.Plate))
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	where := " WHERE " + conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args, nil
}

// Stats はダッシュボード用のステータス別集計を表す。
type Stats struct {
	// Total は対象範囲の総件数。
	Total int `json:"total"`
	// Pending は判定待ちの件数。
	Pending int `json:"pending"`
	// Approved は承認済みの件数。
	Approved int `json:"approved"`
	// Rejected は却下済みの件数。
	Rejected int `json:"rejected"`
}

// CountByStatus はステータス別の件数を集計する。
// SELLERは自分の依頼のみ、INSPECTORは全件が対象となる。
func (r *Repository) CountByStatus(ctx context.Context, role user.Role, userID string) (*Stats, error) {
	query := `
		SELECT status, COUNT(*) FROM inspections`
	var args []any

	switch role {
	case user.RoleSeller:
		query += " WHERE seller_id = ?"
		args = append(args, userID)
	case user.RoleInspector:
		// 全件を集計する
	default:
		return nil, fmt.Errorf("未知のロール: %q", role)
	}
	query += " GROUP BY status"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ステータス別集計に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("集計結果の読み取りに失敗: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusApproved:
			stats.Approved = count
		case StatusRejected:
			stats.Rejected = count
		}
		stats.Total += count
	}
	return &stats, rows.Err()
}
