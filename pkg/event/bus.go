// Package event はドメインイベントの型とプロセス内pub/subバスを提供する。
//
// バスはグローバル変数ではなく、コンストラクタ経由で各コンポーネントに
// 注入される。発行側は購読側の完了を待たない。
package event

import (
	"context"
	"log"
	"sync"
)

// Handler はドメインイベントを処理する関数。
// ハンドラ内のエラーは購読側で処理し、発行側には伝播させないこと。
type Handler func(ctx context.Context, e Event)

// Bus はプロセス内のドメインイベントバス。
// イベント発行時、各ハンドラは独立したgoroutineで実行される。
type Bus struct {
	// mu はhandlersへの並行アクセスを保護するミューテックス。
	mu sync.RWMutex
	// handlers はイベント種類ごとの購読ハンドラ。
	handlers map[Kind][]Handler
	// wg は実行中のハンドラを追跡する。Waitで完了を待ち合わせる。
	wg sync.WaitGroup
}

// NewBus は新しいイベントバスを生成する。
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
	}
}

// Subscribe は指定された種類のイベントにハンドラを登録する。
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish はイベントを発行する。
// 各ハンドラは独立したgoroutineで実行され、発行側はブロックしない。
// 発行元のリクエストが完了してもハンドラが中断されないよう、
// キャンセルを切り離したコンテキストを渡す。
// ハンドラ内のパニックはログに記録され、発行側には伝播しない。
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := b.handlers[e.Kind]
	b.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[EventBus] ハンドラがパニックしました: kind=%s, inspection_id=%s, panic=%v",
						e.Kind, e.InspectionID, r)
				}
			}()
			h(ctx, e)
		}(h)
	}
}

// Wait は実行中の全ハンドラの完了を待つ。
// シャットダウン時やテストでの発行結果の確認に使用する。
func (b *Bus) Wait() {
	b.wg.Wait()
}
