package session

import (
	"blindbox-draw/internal/metrics"
	apperrors "blindbox-draw/pkg/app_errors"
	"blindbox-draw/pkg/logger"
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Guard 程序內唯一的登入狀態持有者。其他元件只能讀取憑證，寫入只發生在登入與失效時
type Guard struct {
	mu     sync.RWMutex
	store  CredentialStore
	token  string
	reauth bool
	subs   map[int]chan error
	nextID int
	log    *zap.Logger
}

func NewGuard(store CredentialStore) *Guard {
	return &Guard{
		store: store,
		subs:  make(map[int]chan error),
		log:   logger.WithComponent("session"),
	}
}

// Init 啟動時讀取持久化的憑證
func (g *Guard) Init(ctx context.Context) error {
	token, err := g.store.Load(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.token = token
	g.reauth = false
	g.mu.Unlock()
	g.log.Info("session initialised", zap.Bool("has_credential", token != ""))
	return nil
}

func (g *Guard) Login(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.ErrInvalidInput
	}
	if err := g.store.Save(ctx, token); err != nil {
		return err
	}
	g.mu.Lock()
	g.token = token
	g.reauth = false
	g.mu.Unlock()
	g.log.Info("logged in")
	return nil
}

func (g *Guard) Logout(ctx context.Context) error {
	g.mu.Lock()
	g.token = ""
	g.reauth = false
	g.mu.Unlock()
	metrics.SessionInvalidations.Inc()
	g.log.Info("logged out")
	return g.store.Clear(ctx)
}

// Token 每次送出需登入的請求前都要先呼叫
func (g *Guard) Token() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token != "" {
		return g.token, nil
	}
	if g.reauth {
		return "", apperrors.ErrSessionExpired
	}
	return "", apperrors.ErrNoCredential
}

// ReauthRequired 憑證因授權失敗被清除後為 true，直到重新登入
func (g *Guard) ReauthRequired() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reauth
}

// Invalidate 授權失敗時清除憑證並通知所有訂閱者；重複呼叫只會通知一次
func (g *Guard) Invalidate(ctx context.Context, cause error) {
	g.mu.Lock()
	if g.token == "" && g.reauth {
		g.mu.Unlock()
		return
	}
	g.token = ""
	g.reauth = true
	subs := make([]chan error, 0, len(g.subs))
	for _, ch := range g.subs {
		subs = append(subs, ch)
	}
	g.mu.Unlock()

	metrics.SessionInvalidations.Inc()
	g.log.Warn("session invalidated", zap.Error(cause))
	if err := g.store.Clear(ctx); err != nil {
		g.log.Error("failed to clear persisted credential", zap.Error(err))
	}

	if cause == nil {
		cause = apperrors.ErrSessionExpired
	}
	for _, ch := range subs {
		select {
		case ch <- cause:
		default:
		}
	}
}

// Subscribe 訂閱失效通知，回傳的函式用來取消訂閱
func (g *Guard) Subscribe() (<-chan error, func()) {
	ch := make(chan error, 1)
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = ch
	g.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.subs, id)
			g.mu.Unlock()
		})
	}
}

// IsSessionError 判斷是否為需要重新登入的錯誤
func IsSessionError(err error) bool {
	return errors.Is(err, apperrors.ErrSessionExpired) || errors.Is(err, apperrors.ErrNoCredential)
}
