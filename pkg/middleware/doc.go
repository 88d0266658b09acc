// Package middleware はGin用の共通ミドルウェアを提供する。
//
// JWT認証、ロールベースのアクセス制御、CORS、パニックリカバリを含む。
package middleware
