// 車両検査APIのエントリポイント。
// 営業担当者が作成した検査依頼を検査員が承認・却下するワークフローと、
// 判定結果のイベント駆動通知を単一のHTTPサービスとして提供する。
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/nao1215/vistoria/internal/reason"
	"github.com/nao1215/vistoria/internal/server"
	"github.com/nao1215/vistoria/internal/storage"
	"github.com/nao1215/vistoria/internal/user"
)

func main() {
	cfg := server.Config{
		Port:        getEnvOr("PORT", "3333"),
		JWTSecret:   getEnvOr("JWT_SECRET", "dev-secret-key"),
		CORSOrigins: strings.Split(getEnvOr("CORS_ORIGIN", "*"), ","),
	}

	db, err := storage.Open(getEnvOr("DB_PATH", "/data/vistoria.db"))
	if err != nil {
		log.Fatalf("データベースの初期化に失敗: %v", err)
	}
	defer db.Close()

	// デモ環境向けの初期データ投入（冪等）
	if os.Getenv("SEED_DEMO") == "true" {
		ctx := context.Background()
		if err := user.NewStore(db).SeedDemo(ctx); err != nil {
			log.Fatalf("デモユーザーの投入に失敗: %v", err)
		}
		if err := reason.NewStore(db).SeedDefaults(ctx); err != nil {
			log.Fatalf("デモ却下理由の投入に失敗: %v", err)
		}
		log.Printf("デモデータを投入しました")
	}

	srv := server.NewServer(cfg, db)

	log.Printf("車両検査APIを起動します: :%s", cfg.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("車両検査APIの起動に失敗: %v", err)
	}
}

// getEnvOr は環境変数の値を取得する。未設定の場合は既定値を返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
