// Package wishlist keeps the shopper's wishlist in sync with the storefront Wishlist API
// and the persisted wishlist record.
package wishlist

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/repository/record"
)

const wishlistPath = "/api/wishlist"

type api interface {
	Do(ctx context.Context, op, method, path string, in, out any) error
}

// Result is the outcome of a wishlist operation; Items is the confirmed list either way.
type Result struct {
	Success bool
	Message string
	Items   []domain.WishlistItem
}

// Service is the WishlistStore. It is safe for concurrent use.
type Service struct {
	api       api
	records   record.Store
	logger    *zap.Logger
	notifier  notify.Notifier
	observers []func(count int)
	ttl       time.Duration

	opMu  sync.Mutex
	mu    sync.RWMutex
	items []domain.WishlistItem
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l).Named("wishlist") }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithObserver registers fn to receive the item count after every change.
func WithObserver(fn func(count int)) Option {
	return func(s *Service) { s.observers = append(s.observers, fn) }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func New(client api, records record.Store, opts ...Option) *Service {
	s := &Service{
		api:      client,
		records:  records,
		logger:   zap.NewNop(),
		notifier: notify.NewLog(nil),
		ttl:      record.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates the wishlist from the persisted record. A corrupt record yields an empty list.
func (s *Service) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.loadRecord(ctx)
}

// Refresh re-reads the wishlist from the server, falling back to the record on failure.
func (s *Service) Refresh(ctx context.Context) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	var resp wishlistResponse
	err := s.api.Do(ctx, "refresh wishlist", http.MethodGet, wishlistPath, nil, &resp)
	if err == nil {
		err = s.apply(ctx, "refresh wishlist", resp)
	}
	if err != nil {
		if lerr := s.loadRecord(ctx); lerr != nil {
			s.logger.Warn("fall back to record", zap.Error(lerr))
		}
		return s.fail(ctx, "refresh wishlist", err)
	}
	return s.result(true, resp.Message), nil
}

func (s *Service) Add(ctx context.Context, productID domain.ProductID) (Result, error) {
	return s.mutate(ctx, "add to wishlist", http.MethodPost, productID, "Added to wishlist")
}

func (s *Service) Remove(ctx context.Context, productID domain.ProductID) (Result, error) {
	return s.mutate(ctx, "remove from wishlist", http.MethodDelete, productID, "Removed from wishlist")
}

// Toggle removes the product when it is in the wishlist and adds it otherwise.
func (s *Service) Toggle(ctx context.Context, productID domain.ProductID) (Result, error) {
	if s.Contains(productID) {
		return s.Remove(ctx, productID)
	}
	return s.Add(ctx, productID)
}

func (s *Service) Contains(productID domain.ProductID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// Items returns a copy of the confirmed wishlist.
func (s *Service) Items() []domain.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.WishlistItem(nil), s.items...)
}

// Clear forgets the wishlist locally and deletes the persisted record.
func (s *Service) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.records.Delete(ctx, record.WishlistKey); err != nil {
		return err
	}
	s.replace(nil)
	return nil
}

type wishlistRequest struct {
	ProductID domain.ProductID `json:"productId"`
}

type wishlistResponse struct {
	Message    string                 `json:"message"`
	Wishlist   *[]domain.WishlistItem `json:"wishlist"`
	CookieData *string                `json:"cookieData"`
}

func (s *Service) mutate(ctx context.Context, op, method string, productID domain.ProductID, okMsg string) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	var resp wishlistResponse
	err := s.api.Do(ctx, op, method, wishlistPath, wishlistRequest{ProductID: productID}, &resp)
	if err == nil {
		err = s.apply(ctx, op, resp)
	}
	if err != nil {
		return s.fail(ctx, op, err)
	}
	msg := resp.Message
	if msg == "" {
		msg = okMsg
	}
	notify.Success(ctx, s.notifier, msg)
	return s.result(true, msg), nil
}

func (s *Service) apply(ctx context.Context, op string, resp wishlistResponse) error {
	if resp.Wishlist == nil {
		return domain.NewError(domain.KindMalformedResponse, op, nil, "unexpected response from the store")
	}
	items := dedupe(*resp.Wishlist)
	s.replace(items)

	value := ""
	if resp.CookieData != nil {
		value = *resp.CookieData
	}
	if value == "" {
		encoded, err := record.Encode(items)
		if err != nil {
			s.logger.Error("encode wishlist record", zap.Error(err))
			return nil
		}
		value = encoded
	}
	if err := s.records.Set(ctx, record.WishlistKey, value, s.ttl); err != nil {
		s.logger.Warn("persist wishlist record", zap.Error(err))
	}
	return nil
}

func (s *Service) loadRecord(ctx context.Context) error {
	value, ok, err := s.records.Get(ctx, record.WishlistKey)
	if err != nil {
		return err
	}
	var items []domain.WishlistItem
	if ok {
		if err := record.Decode(value, &items); err != nil {
			s.logger.Warn("corrupt wishlist record, starting empty", zap.Error(err))
			items = nil
		}
	}
	s.replace(dedupe(items))
	return nil
}

func (s *Service) replace(items []domain.WishlistItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	for _, fn := range s.observers {
		fn(len(items))
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) (Result, error) {
	msg := domain.MessageOf(err, "Something went wrong, please try again")
	s.logger.Warn("wishlist operation failed", zap.String("op", op), zap.Error(err))
	notify.Error(ctx, s.notifier, msg)
	return s.result(false, msg), err
}

func (s *Service) result(ok bool, msg string) Result {
	return Result{Success: ok, Message: msg, Items: s.Items()}
}

func dedupe(items []domain.WishlistItem) []domain.WishlistItem {
	seen := make(map[domain.ProductID]bool, len(items))
	out := make([]domain.WishlistItem, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 || seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		out = append(out, it)
	}
	return out
}
