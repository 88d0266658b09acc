package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/vistoria/internal/reason"
)

// reasonResponse は却下理由のJSONレスポンス構造。
type reasonResponse struct {
	// ID は却下理由の一意識別子。
	ID string `json:"id"`
	// Title は却下理由のタイトル。
	Title string `json:"title"`
	// Active は選択可能かどうかの有効フラグ。
	Active bool `json:"active"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339形式）。
	UpdatedAt string `json:"updated_at"`
}

// toReasonResponse は却下理由をJSONレスポンスに変換する。
func toReasonResponse(r *reason.RejectionReason) reasonResponse {
	return reasonResponse{
		ID:        r.ID,
		Title:     r.Title,
		Active:    r.Active,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

// handleListReasons は却下理由の一覧を返すハンドラ。
func (s *Server) handleListReasons() gin.HandlerFunc {
	return func(c *gin.Context) {
		reasons, err := s.reasons.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "却下理由一覧の取得に失敗しました"})
			log.Printf("却下理由一覧取得エラー: %v", err)
			return
		}

		responses := make([]reasonResponse, 0, len(reasons))
		for i := range reasons {
			responses = append(responses, toReasonResponse(&reasons[i]))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// reasonRequest は却下理由の作成・更新リクエストのJSON構造。
type reasonRequest struct {
	// Title は却下理由のタイトル。
	Title string `json:"title" binding:"required"`
	// Active は選択可能かどうかの有効フラグ。更新時のみ使用する。
	Active *bool `json:"active"`
}

// handleCreateReason は却下理由を作成するハンドラ。
func (s *Server) handleCreateReason() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルが必要です"})
			return
		}

		r, err := s.reasons.Create(c.Request.Context(), req.Title)
		if errors.Is(err, reason.ErrTitleTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "同じタイトルの却下理由が既に存在します"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "却下理由の作成に失敗しました"})
			log.Printf("却下理由作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, toReasonResponse(r))
	}
}

// handleUpdateReason は却下理由を更新するハンドラ。
// activeを省略した場合は有効のまま更新する。
func (s *Server) handleUpdateReason() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reasonRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルが必要です"})
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		r, err := s.reasons.Update(c.Request.Context(), c.Param("id"), req.Title, active)
		switch {
		case errors.Is(err, reason.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "却下理由が見つかりません"})
			return
		case errors.Is(err, reason.ErrTitleTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "同じタイトルの却下理由が既に存在します"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "却下理由の更新に失敗しました"})
			log.Printf("却下理由更新エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toReasonResponse(r))
	}
}

// handleDeleteReason は却下理由を削除するハンドラ。
// 検査依頼から参照されている理由は409を返して削除を拒否する。
func (s *Server) handleDeleteReason() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.reasons.Delete(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, reason.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "却下理由が見つかりません"})
			return
		case errors.Is(err, reason.ErrReasonInUse):
			c.JSON(http.StatusConflict, gin.H{"error": "検査依頼から参照されている却下理由は削除できません"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "却下理由の削除に失敗しました"})
			log.Printf("却下理由削除エラー: %v", err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
