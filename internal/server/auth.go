package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/vistoria/internal/user"
	"github.com/nao1215/vistoria/pkg/middleware"
)

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はログイン用メールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// userResponse はユーザーのJSONレスポンス構造。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Name は表示名。
	Name string `json:"name"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール。
	Role string `json:"role"`
}

// toUserResponse はユーザーをJSONレスポンスに変換する。
func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(u.Role),
	}
}

// handleLogin はメールアドレスとパスワードで認証しJWTトークンを発行するハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスとパスワードが必要です"})
			return
		}

		u, err := s.users.Authenticate(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, user.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "メールアドレスまたはパスワードが不正です"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "認証処理に失敗しました"})
			log.Printf("認証エラー: %v", err)
			return
		}

		token, err := middleware.GenerateJWT(s.config.JWTSecret, u.ID, u.Email, string(u.Role))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  toUserResponse(u),
		})
	}
}
