package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sekolahdigital/opr/internal/service"
)

// ToastNotifier 把生命周期消息广播为 toast 事件
type ToastNotifier struct {
	hub *Hub
}

func NewToastNotifier(hub *Hub) *ToastNotifier {
	return &ToastNotifier{hub: hub}
}

func (n *ToastNotifier) Notify(msg string) {
	n.hub.Publish(Event{
		Type: EventToast,
		Data: map[string]any{"message": msg},
	})
}

// RenderGate 预览渲染稳定信号闸
// 提交流程切回标准版面后，广播 render.request 请客户端重绘，
// 客户端绘制完成后回报 Signal，WaitSettled 才放行截取。
// 没有订阅者（纯 CLI 场景）时立即放行；有订阅者但迟迟不回报时超时放行。
type RenderGate struct {
	hub *Hub

	mu      sync.Mutex
	waiters map[service.PreviewMode][]chan struct{}

	settleTimeout time.Duration
}

func NewRenderGate(hub *Hub) *RenderGate {
	return &RenderGate{
		hub:           hub,
		waiters:       make(map[service.PreviewMode][]chan struct{}),
		settleTimeout: 3 * time.Second,
	}
}

// Signal 客户端回报指定版面已渲染稳定
func (g *RenderGate) Signal(mode service.PreviewMode) {
	g.mu.Lock()
	pending := g.waiters[mode]
	delete(g.waiters, mode)
	g.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// WaitSettled 等待指定版面渲染稳定
func (g *RenderGate) WaitSettled(ctx context.Context, mode service.PreviewMode) error {
	if g.hub.SubscriberCount() == 0 {
		return nil
	}

	ch := make(chan struct{})
	g.mu.Lock()
	g.waiters[mode] = append(g.waiters[mode], ch)
	g.mu.Unlock()

	g.hub.Publish(Event{
		Type: EventRenderRequest,
		Data: map[string]any{"mode": string(mode)},
	})

	select {
	case <-ch:
		return nil
	case <-time.After(g.settleTimeout):
		return nil // 客户端失联时放行，避免卡死提交
	case <-ctx.Done():
		return fmt.Errorf("等待渲染稳定被取消: %w", ctx.Err())
	}
}
