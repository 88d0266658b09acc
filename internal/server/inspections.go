package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/vistoria/internal/inspection"
	"github.com/nao1215/vistoria/internal/user"
	"github.com/nao1215/vistoria/pkg/middleware"
)

// ページネーションの既定値と上限。
const (
	defaultPerPage = 10
	maxPerPage     = 50
)

// inspectionResponse は検査依頼のJSONレスポンス構造。
type inspectionResponse struct {
	// ID は検査依頼の一意識別子。
	ID string `json:"id"`
	// SellerID は依頼を作成した営業担当者のユーザーID。
	SellerID string `json:"seller_id"`
	// CustomerName は顧客名。
	CustomerName string `json:"customer_name"`
	// Plate は正規化済みのナンバープレート。
	Plate string `json:"plate"`
	// VehicleModel は車両モデル。
	VehicleModel string `json:"vehicle_model"`
	// VehicleYear は車両年式。
	VehicleYear int `json:"vehicle_year"`
	// Value は車両価格（小数第2位までの文字列表現）。
	Value string `json:"value"`
	// Status は検査依頼のステータス。
	Status string `json:"status"`
	// RejectionReasonID は却下理由のID。未却下の場合はnull。
	RejectionReasonID *string `json:"rejection_reason_id"`
	// RejectionComment は却下時のコメント。未却下の場合はnull。
	RejectionComment *string `json:"rejection_comment"`
	// RejectionReason は解決済みの却下理由。未却下の場合はnull。
	RejectionReason *reasonResponse `json:"rejection_reason"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toInspectionResponse は検査依頼をJSONレスポンスに変換する。
func toInspectionResponse(insp *inspection.Inspection) inspectionResponse {
	resp := inspectionResponse{
		ID:                insp.ID,
		SellerID:          insp.SellerID,
		CustomerName:      insp.CustomerName,
		Plate:             insp.Plate,
		VehicleModel:      insp.VehicleModel,
		VehicleYear:       insp.VehicleYear,
		Value:             insp.Value.StringFixed(2),
		Status:            string(insp.Status),
		RejectionReasonID: insp.RejectionReasonID,
		RejectionComment:  insp.RejectionComment,
		CreatedAt:         insp.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         insp.UpdatedAt.Format(time.RFC3339),
	}
	if insp.RejectionReason != nil {
		r := toReasonResponse(insp.RejectionReason)
		resp.RejectionReason = &r
	}
	return resp
}

// callerIdentity はコンテキストから呼び出し元のユーザーIDとロールを取得する。
// 取得できない場合は401を返してリクエストを打ち切る。
func callerIdentity(c *gin.Context) (string, user.Role, bool) {
	userID := middleware.GetUserID(c)
	role, err := user.ParseRole(middleware.GetRole(c))
	if userID == "" || err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー情報が取得できません"})
		return "", "", false
	}
	return userID, role, true
}

// createInspectionRequest は検査依頼の作成リクエストのJSON構造。
type createInspectionRequest struct {
	// CustomerName は顧客名。
	CustomerName string `json:"customer_name" binding:"required"`
	// Plate はナンバープレート。保存前に正規化される。
	Plate string `json:"plate" binding:"required"`
	// VehicleModel は車両モデル。
	VehicleModel string `json:"vehicle_model" binding:"required"`
	// VehicleYear は車両年式。
	VehicleYear int `json:"vehicle_year" binding:"required"`
	// Value は車両価格の文字列表現（例: "12000.50"）。
	Value string `json:"value" binding:"required"`
}

// handleCreateInspection は検査依頼を作成するハンドラ。
// 所有者は常に認証済みの営業担当者自身であり、リクエスト本文では指定できない。
func (s *Server) handleCreateInspection() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := callerIdentity(c)
		if !ok {
			return
		}

		var req createInspectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		insp, err := s.lifecycle.Create(c.Request.Context(), userID, inspection.CreateInput{
			CustomerName: req.CustomerName,
			Plate:        req.Plate,
			VehicleModel: req.VehicleModel,
			VehicleYear:  req.VehicleYear,
			Value:        req.Value,
		})
		if errors.Is(err, inspection.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "検査依頼の作成に失敗しました"})
			log.Printf("検査依頼作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toInspectionResponse(insp))
	}
}

// handleListInspections は検査依頼の一覧を返すハンドラ。
// SELLERは自分の依頼のみ、INSPECTORは全件を閲覧できる。
func (s *Server) handleListInspections() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := callerIdentity(c)
		if !ok {
			return
		}

		filter := inspection.Filter{
			Role:    role,
			UserID:  userID,
			Query:   c.Query("q"),
			Plate:   c.Query("plate"),
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "per_page", defaultPerPage),
		}
		if filter.Page < 1 {
			filter.Page = 1
		}
		if filter.PerPage < 1 {
			filter.PerPage = defaultPerPage
		}
		if filter.PerPage > maxPerPage {
			filter.PerPage = maxPerPage
		}

		if statusParam := c.Query("status"); statusParam != "" {
			status, err := inspection.ParseStatus(statusParam)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "ステータスの指定が不正です"})
				return
			}
			filter.Status = status
		}

		page, err := s.inspections.List(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "検査依頼一覧の取得に失敗しました"})
			log.Printf("検査依頼一覧取得エラー: %v", err)
			return
		}

		items := make([]inspectionResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, toInspectionResponse(&page.Items[i]))
		}
		c.JSON(http.StatusOK, gin.H{
			"data": items,
			"meta": page.Meta,
		})
	}
}

// handleGetInspection は検査依頼を1件取得するハンドラ。
// SELLERが他の営業担当者の依頼を参照した場合は存在を秘匿して404を返す。
func (s *Server) handleGetInspection() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := callerIdentity(c)
		if !ok {
			return
		}

		insp, err := s.inspections.FindByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, inspection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "検査依頼が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "検査依頼の取得に失敗しました"})
			log.Printf("検査依頼取得エラー: %v", err)
			return
		}
		if role == user.RoleSeller && insp.SellerID != userID {
			c.JSON(http.StatusNotFound, gin.H{"error": "検査依頼が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, toInspectionResponse(insp))
	}
}

// handleInspectionStats はステータス別の集計を返すハンドラ。
func (s *Server) handleInspectionStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := callerIdentity(c)
		if !ok {
			return
		}

		stats, err := s.inspections.CountByStatus(c.Request.Context(), role, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計の取得に失敗しました"})
			log.Printf("集計取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// changeStatusRequest は検査依頼の判定リクエストのJSON構造。
type changeStatusRequest struct {
	// Status は遷移先のステータス（"APPROVED" または "REJECTED"）。
	Status string `json:"status" binding:"required"`
	// RejectionReasonID は却下理由のID。REJECTEDの場合は必須。
	RejectionReasonID *string `json:"rejection_reason_id"`
	// RejectionComment は却下時の任意コメント。
	RejectionComment *string `json:"rejection_comment"`
}

// handleChangeStatus は検査員の判定を適用するハンドラ。
//
// エラーの対応: 依頼が存在しない場合は404、入力不備と存在しない却下理由は
// 400、確定済みの依頼への再判定は409を返す。
func (s *Server) handleChangeStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changeStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}

		status, err := inspection.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ステータスの指定が不正です"})
			return
		}

		insp, err := s.lifecycle.ChangeStatus(c.Request.Context(), c.Param("id"), inspection.ChangeInput{
			Status:            status,
			RejectionReasonID: req.RejectionReasonID,
			RejectionComment:  req.RejectionComment,
		})
		switch {
		case errors.Is(err, inspection.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "検査依頼が見つかりません"})
			return
		case errors.Is(err, inspection.ErrInvalidStatusTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "この検査依頼は既に確定しています"})
			return
		case errors.Is(err, inspection.ErrRejectionReasonRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "却下には却下理由の指定が必要です"})
			return
		case errors.Is(err, inspection.ErrReasonNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "指定された却下理由が存在しません"})
			return
		case errors.Is(err, inspection.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "検査依頼の更新に失敗しました"})
			log.Printf("検査依頼更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toInspectionResponse(insp))
	}
}

// parseIntQuery はクエリパラメータを整数として取得する。
// 未指定またはパース不能の場合は既定値を返す。
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
