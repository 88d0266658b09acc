package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/vistoria/internal/notification"
	"github.com/nao1215/vistoria/pkg/middleware"
)

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Message は通知の本文。
	Message string `json:"message"`
	// ReadAt は既読日時（RFC3339形式）。未読の場合はnull。
	ReadAt *string `json:"read_at"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse は通知をJSONレスポンスに変換する。
func toNotificationResponse(n *notification.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		readAt := n.ReadAt.Format(time.RFC3339)
		resp.ReadAt = &readAt
	}
	return resp
}

// handleListNotifications は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.notifications.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		responses := make([]notificationResponse, 0, len(notifications))
		for i := range notifications {
			responses = append(responses, toNotificationResponse(&notifications[i]))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleUnreadCount は認証済みユーザーの未読通知数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.notifications.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読数の取得に失敗しました"})
			log.Printf("未読数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
//
// 既読化は冪等であり、既読済み・他人の通知・存在しないIDのいずれでも
// 204を返す。呼び出し元からは区別できない。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if _, err := s.notifications.MarkAsRead(c.Request.Context(), userID, c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
