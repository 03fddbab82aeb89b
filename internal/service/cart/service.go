// Package cart keeps the shopper's cart in sync with the storefront Cart API and the
// persisted cart record.
//
// The in-memory list only ever holds what the server last confirmed. Every mutating call
// replaces it wholesale with the server's cart; failures leave it untouched.
package cart

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/repository/record"
)

const cartPath = "/api/cart"

const (
	msgAdded   = "Added to cart"
	msgUpdated = "Cart updated"
	msgRemoved = "Removed from cart"
	msgFailed  = "Something went wrong, please try again"
)

type api interface {
	Do(ctx context.Context, op, method, path string, in, out any) error
}

// Summary is what the header badge and the cart totals render.
type Summary struct {
	Count    int
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Currency string
}

// Result is the outcome of a cart operation. Lines and Summary always reflect the
// current confirmed cart, whether or not the operation succeeded.
type Result struct {
	Success bool
	Message string
	Lines   []domain.CartLine
	Summary Summary
}

// Service is the CartStore. It is safe for concurrent use.
type Service struct {
	api       api
	records   record.Store
	logger    *zap.Logger
	notifier  notify.Notifier
	observers []func(Summary)
	openPanel func()
	attempts  int
	ttl       time.Duration
	retryMin  time.Duration
	retryMax  time.Duration

	// opMu serializes network operations and record writes, so responses are applied in
	// the order their requests were sent.
	opMu    sync.Mutex
	refresh singleflight.Group

	mu      sync.RWMutex
	lines   []domain.CartLine
	summary Summary
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l).Named("cart") }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithObserver registers fn to receive the summary after every change to the cart.
// Observers run while the store is busy and must not call back into it.
func WithObserver(fn func(Summary)) Option {
	return func(s *Service) { s.observers = append(s.observers, fn) }
}

// WithPanelOpener sets the hook that opens the cart panel after a successful add.
func WithPanelOpener(fn func()) Option {
	return func(s *Service) { s.openPanel = fn }
}

// WithRefreshAttempts sets how many times RefreshCart tries before falling back to the record.
func WithRefreshAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithRefreshBackoff bounds the delay between refresh attempts.
func WithRefreshBackoff(min, max time.Duration) Option {
	return func(s *Service) { s.retryMin, s.retryMax = min, max }
}

// WithTTL sets the lifetime of the persisted record. Zero or less means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func New(client api, records record.Store, opts ...Option) *Service {
	s := &Service{
		api:      client,
		records:  records,
		logger:   zap.NewNop(),
		notifier: notify.NewLog(nil),
		attempts: 2,
		ttl:      record.DefaultTTL,
		retryMin: 200 * time.Millisecond,
		retryMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load rehydrates the cart from the persisted record without touching the network.
// A corrupt record yields an empty cart.
func (s *Service) Load(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.loadRecord(ctx)
}

// AddToCart adds quantity units of the product/variant. Quantities below 1 are sent as 1.
func (s *Service) AddToCart(ctx context.Context, productID domain.ProductID, quantity int, attrs domain.Attributes) (Result, error) {
	qty := clampQuantity(quantity)
	res, err := s.mutate(ctx, "add to cart", http.MethodPost, lineRequest{
		ProductID:         productID,
		Quantity:          &qty,
		VariantAttributes: attrs,
	}, msgAdded)
	if err != nil {
		return res, err
	}
	notify.Success(ctx, s.notifier, res.Message)
	if s.openPanel != nil {
		s.openPanel()
	}
	return res, nil
}

// UpdateCartItem sets the quantity of the line identified by productID and attrs.
// Quantities below 1 are sent as 1.
func (s *Service) UpdateCartItem(ctx context.Context, productID domain.ProductID, quantity int, attrs domain.Attributes) (Result, error) {
	qty := clampQuantity(quantity)
	return s.mutate(ctx, "update cart", http.MethodPut, lineRequest{
		ProductID:         productID,
		Quantity:          &qty,
		VariantAttributes: attrs,
	}, msgUpdated)
}

// RemoveFromCart removes the line identified by productID and attrs once the server confirms it.
func (s *Service) RemoveFromCart(ctx context.Context, productID domain.ProductID, attrs domain.Attributes) (Result, error) {
	return s.mutate(ctx, "remove from cart", http.MethodDelete, lineRequest{
		ProductID:         productID,
		VariantAttributes: attrs,
	}, msgRemoved)
}

// RefreshCart re-reads the cart from the server, retrying transport failures. When every
// attempt fails the cart is reloaded from the persisted record and the error is returned.
// Concurrent calls share one round trip.
func (s *Service) RefreshCart(ctx context.Context) (Result, error) {
	v, err, _ := s.refresh.Do("refresh", func() (any, error) {
		return s.refreshCart(ctx)
	})
	return v.(Result), err
}

// Clear forgets the cart locally and deletes the persisted record.
func (s *Service) Clear(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if err := s.records.Delete(ctx, record.CartKey); err != nil {
		return err
	}
	s.replace(nil, summarize(nil, nil))
	return nil
}

// Lines returns a copy of the confirmed cart.
func (s *Service) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLines(s.lines)
}

func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// Find returns the line with the given identity.
func (s *Service) Find(productID domain.ProductID, attrs domain.Attributes) (domain.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lines {
		if l.Matches(productID, attrs) {
			l.VariantAttributes = l.VariantAttributes.Clone()
			return l, true
		}
	}
	return domain.CartLine{}, false
}

type lineRequest struct {
	ProductID         domain.ProductID  `json:"productId"`
	Quantity          *int              `json:"quantity,omitempty"`
	VariantAttributes domain.Attributes `json:"variantAttributes"`
}

type cartResponse struct {
	Message    string             `json:"message"`
	Cart       *[]domain.CartLine `json:"cart"`
	CookieData *string            `json:"cookieData"`
	Count      *int               `json:"count"`
	Total      *decimal.Decimal   `json:"total"`
	TaxTotal   *decimal.Decimal   `json:"taxTotal"`
	GrandTotal *decimal.Decimal   `json:"grandTotal"`
}

func (s *Service) mutate(ctx context.Context, op, method string, body lineRequest, okMsg string) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	var resp cartResponse
	if err := s.api.Do(ctx, op, method, cartPath, body, &resp); err != nil {
		return s.fail(ctx, op, err)
	}
	res, err := s.apply(ctx, op, resp)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	if res.Message == "" {
		res.Message = okMsg
	}
	return res, nil
}

func (s *Service) refreshCart(ctx context.Context) (Result, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	b := &backoff.Backoff{Min: s.retryMin, Max: s.retryMax, Jitter: true}
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var resp cartResponse
		err := s.api.Do(ctx, "refresh cart", http.MethodGet, cartPath, nil, &resp)
		if err == nil {
			res, applyErr := s.apply(ctx, "refresh cart", resp)
			if applyErr == nil {
				return res, nil
			}
			err = applyErr
		}
		lastErr = err
		if domain.KindOf(err) != domain.KindNetwork || attempt == s.attempts {
			break
		}
		wait := b.Duration()
		s.logger.Debug("refresh retry", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			attempt = s.attempts
		case <-time.After(wait):
		}
	}

	if err := s.loadRecord(ctx); err != nil {
		s.logger.Warn("fall back to record", zap.Error(err))
	}
	return s.fail(ctx, "refresh cart", lastErr)
}

// apply installs a confirmed server cart, persists it and broadcasts the new summary.
// Callers hold opMu.
func (s *Service) apply(ctx context.Context, op string, resp cartResponse) (Result, error) {
	if resp.Cart == nil {
		return Result{}, domain.NewError(domain.KindMalformedResponse, op, nil, "unexpected response from the store")
	}
	lines := domain.CloneLines(*resp.Cart)
	for i := range lines {
		lines[i].Quantity = clampQuantity(lines[i].Quantity)
	}
	sum := summarize(lines, &resp)

	s.replace(lines, sum)
	s.persist(ctx, lines, resp.CookieData)
	return s.result(true, resp.Message), nil
}

func (s *Service) persist(ctx context.Context, lines []domain.CartLine, cookieData *string) {
	var value string
	if cookieData != nil && *cookieData != "" {
		value = *cookieData
	} else {
		encoded, err := record.Encode(lines)
		if err != nil {
			s.logger.Error("encode cart record", zap.Error(err))
			return
		}
		value = encoded
	}
	if err := s.records.Set(ctx, record.CartKey, value, s.ttl); err != nil {
		s.logger.Warn("persist cart record", zap.Error(err))
	}
}

func (s *Service) loadRecord(ctx context.Context) error {
	value, ok, err := s.records.Get(ctx, record.CartKey)
	if err != nil {
		return err
	}
	var lines []domain.CartLine
	if ok {
		if err := record.Decode(value, &lines); err != nil {
			s.logger.Warn("corrupt cart record, starting empty", zap.Error(err))
			lines = nil
		}
	}
	lines = validLines(lines)
	s.replace(lines, summarize(lines, nil))
	return nil
}

func (s *Service) replace(lines []domain.CartLine, sum Summary) {
	s.mu.Lock()
	s.lines = lines
	s.summary = sum
	s.mu.Unlock()
	for _, fn := range s.observers {
		fn(sum)
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) (Result, error) {
	msg := domain.MessageOf(err, msgFailed)
	s.logger.Warn("cart operation failed", zap.String("op", op), zap.Error(err))
	notify.Error(ctx, s.notifier, msg)
	return s.result(false, msg), err
}

func (s *Service) result(ok bool, msg string) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Result{
		Success: ok,
		Message: msg,
		Lines:   domain.CloneLines(s.lines),
		Summary: s.summary,
	}
}

func summarize(lines []domain.CartLine, resp *cartResponse) Summary {
	var sum Summary
	for _, l := range lines {
		sum.Count += l.Quantity
		sum.Subtotal = sum.Subtotal.Add(l.LineTotal())
		if sum.Currency == "" {
			sum.Currency = l.Currency
		}
	}
	if resp != nil {
		if resp.Count != nil {
			sum.Count = *resp.Count
		}
		if resp.Total != nil {
			sum.Subtotal = *resp.Total
		}
		if resp.TaxTotal != nil {
			sum.Tax = *resp.TaxTotal
		}
	}
	sum.Total = sum.Subtotal.Add(sum.Tax)
	if resp != nil && resp.GrandTotal != nil {
		sum.Total = *resp.GrandTotal
	}
	return sum
}

// validLines drops rows a hand-edited or truncated record may carry.
func validLines(lines []domain.CartLine) []domain.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity < 1 {
			continue
		}
		if l.VariantAttributes == nil {
			l.VariantAttributes = domain.Attributes{}
		}
		out = append(out, l)
	}
	return out
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
