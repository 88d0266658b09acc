// Package server は車両検査APIのHTTPサーバーを提供する。
//
// 全ルートは /api/v1 配下に集約され、ログインを除くすべてのルートが
// JWT認証を要求する。ロールによる操作制限はミドルウェアで行う。
package server

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/vistoria/internal/inspection"
	"github.com/nao1215/vistoria/internal/notification"
	"github.com/nao1215/vistoria/internal/reason"
	"github.com/nao1215/vistoria/internal/user"
	"github.com/nao1215/vistoria/pkg/event"
	"github.com/nao1215/vistoria/pkg/middleware"
)

// Config はHTTPサーバーの設定。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// JWTSecret はJWTトークンの署名鍵。
	JWTSecret string
	// CORSOrigins はCORSで許可するオリジンの一覧。
	CORSOrigins []string
}

// Server は車両検査APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// config はサーバー設定。
	config Config
	// users はユーザーストア。
	users *user.Store
	// lifecycle は検査依頼のライフサイクルサービス。
	lifecycle *inspection.Lifecycle
	// inspections は検査依頼リポジトリ。一覧と集計に使用する。
	inspections *inspection.Repository
	// reasons は却下理由ストア。
	reasons *reason.Store
	// notifications は通知ストア。
	notifications *notification.Store
	// bus はドメインイベントバス。シャットダウン時の待ち合わせに使用する。
	bus *event.Bus
}

// NewServer は新しいHTTPサーバーを生成する。
// 各ストアの構築、通知サブスクライバーの登録、ルーティングの設定を行う。
func NewServer(cfg Config, db *sql.DB) *Server {
	bus := event.NewBus()

	users := user.NewStore(db)
	reasons := reason.NewStore(db)
	inspections := inspection.NewRepository(db)
	notifications := notification.NewStore(db)

	notification.NewSubscriber(notifications, inspections, users).Register(bus)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		config:        cfg,
		users:         users,
		lifecycle:     inspection.NewLifecycle(inspections, reasons, bus),
		inspections:   inspections,
		reasons:       reasons,
		notifications: notifications,
		bus:           bus,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.config.Port))
}

// Wait は実行中の通知ハンドラの完了を待つ。シャットダウン時に呼び出す。
func (s *Server) Wait() {
	s.bus.Wait()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// 認証不要ルート
	auth := api.Group("/auth")
	{
		// ログイン
		auth.POST("/login", s.handleLogin())
	}

	// 認証必須ルート
	authed := api.Group("")
	authed.Use(middleware.JWTAuth(s.config.JWTSecret))
	{
		inspections := authed.Group("/inspections")
		{
			// 検査依頼一覧取得（SELLERは自分の依頼のみ）
			inspections.GET("", s.handleListInspections())
			// ステータス別集計の取得
			inspections.GET("/stats", s.handleInspectionStats())
			// 検査依頼の作成（営業担当者のみ）
			inspections.POST("",
				middleware.RequireRole(string(user.RoleSeller)), s.handleCreateInspection())
			// 検査依頼の取得
			inspections.GET("/:id", s.handleGetInspection())
			// 検査依頼の判定（検査員のみ）
			inspections.PATCH("/:id/status",
				middleware.RequireRole(string(user.RoleInspector)), s.handleChangeStatus())
		}

		// 却下理由の管理（検査員のみ）
		reasons := authed.Group("/rejection-reasons")
		reasons.Use(middleware.RequireRole(string(user.RoleInspector)))
		{
			reasons.GET("", s.handleListReasons())
			reasons.POST("", s.handleCreateReason())
			reasons.PUT("/:id", s.handleUpdateReason())
			reasons.DELETE("/:id", s.handleDeleteReason())
		}

		notifications := authed.Group("/notifications")
		{
			// 通知一覧取得（自分宛のみ）
			notifications.GET("", s.handleListNotifications())
			// 未読通知数の取得
			notifications.GET("/unread-count", s.handleUnreadCount())
			// 通知を既読にする（冪等）
			notifications.PATCH("/:id/read", s.handleMarkAsRead())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vistoria"})
	})
}
