package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"storefront/internal/apiclient"
	"storefront/internal/domain"
	"storefront/internal/httpserver"
	"storefront/internal/notify"
	"storefront/internal/repository/record"
)

type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type reply struct {
	status int
	body   string
}

type captured struct {
	method string
	body   map[string]any
}

// scriptedServer answers requests with replies in order, repeating the last one.
type scriptedServer struct {
	*httptest.Server
	mu       sync.Mutex
	replies  []reply
	requests []captured
}

func newScriptedServer(t *testing.T, replies ...reply) *scriptedServer {
	t.Helper()
	s := &scriptedServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		s.mu.Lock()
		idx := len(s.requests)
		s.requests = append(s.requests, captured{method: r.Method, body: body})
		if idx >= len(s.replies) {
			idx = len(s.replies) - 1
		}
		rep := s.replies[idx]
		s.mu.Unlock()

		status := rep.status
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, rep.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedServer) Requests() []captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]captured(nil), s.requests...)
}

func newSandboxServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := httpserver.New(":0", nil, httpserver.Deps{
		Catalog: httpserver.NewCatalog([]domain.Product{
			{ID: 101, Name: "Mug", Price: decimal.RequireFromString("9.99"), Currency: "USD", Stock: -1},
			{ID: 102, Name: "Shirt", Price: decimal.NewFromInt(20), Currency: "USD", Stock: 2},
		}),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type fixture struct {
	svc      *Service
	store    *memStore
	notified *notify.Recorder
}

func newFixture(t *testing.T, baseURL string, opts ...Option) fixture {
	t.Helper()
	store := newMemStore()
	client, err := apiclient.New(baseURL, apiclient.WithRecords(store, record.CartKey))
	require.NoError(t, err)
	rec := &notify.Recorder{}
	all := append([]Option{WithNotifier(rec), WithRefreshBackoff(time.Millisecond, 2*time.Millisecond)}, opts...)
	return fixture{svc: New(client, store, all...), store: store, notified: rec}
}

func decodeRecord(t *testing.T, store record.Store) []domain.CartLine {
	t.Helper()
	value, ok, err := store.Get(context.Background(), record.CartKey)
	require.NoError(t, err)
	require.True(t, ok, "cart record not persisted")
	var lines []domain.CartLine
	require.NoError(t, record.Decode(value, &lines))
	return lines
}

func TestAddToCart_EmptyCartScenario(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":true,"cart":[{"productId":101,"quantity":2,"price":9.99,"currency":"USD","variantAttributes":{}}]}`})
	opened := 0
	var seen []Summary
	f := newFixture(t, srv.URL, WithPanelOpener(func() { opened++ }), WithObserver(func(s Summary) { seen = append(seen, s) }))
	ctx := context.Background()
	require.NoError(t, f.svc.Load(ctx))
	require.Empty(t, f.svc.Lines())

	res, err := f.svc.AddToCart(ctx, 101, 2, domain.Attributes{})
	require.NoError(t, err)
	assert.True(t, res.Success)

	lines := f.svc.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, domain.ProductID(101), lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("9.99")))
	assert.Empty(t, lines[0].VariantAttributes)

	persisted := decodeRecord(t, f.store)
	require.Len(t, persisted, 1)
	assert.Equal(t, lines[0].ProductID, persisted[0].ProductID)
	assert.Equal(t, lines[0].Quantity, persisted[0].Quantity)
	assert.True(t, lines[0].Price.Equal(persisted[0].Price))
	assert.Equal(t, "USD", persisted[0].Currency)

	assert.Equal(t, 1, opened)
	last, ok := f.notified.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Notification{Level: notify.LevelSuccess, Message: msgAdded}, last)

	require.NotEmpty(t, seen)
	sum := seen[len(seen)-1]
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, "19.98", sum.Subtotal.String())
	assert.Equal(t, "USD", sum.Currency)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, map[string]any{"productId": float64(101), "quantity": float64(2), "variantAttributes": map[string]any{}}, reqs[0].body)
}

func TestMutations_ReplaceCartWholesale(t *testing.T) {
	srv := newScriptedServer(t,
		reply{body: `{"success":true,"cart":[{"productId":1,"quantity":1,"price":"1.00","currency":"EUR","variantAttributes":[]},{"productId":2,"quantity":3,"price":"2.00","currency":"EUR","variantAttributes":{"Size":"M"}}]}`},
		reply{body: `{"success":true,"cart":[{"productId":3,"quantity":5,"price":"4.00","currency":"EUR","variantAttributes":{}}]}`},
		reply{body: `{"success":true,"cart":[]}`},
	)
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	res, err := f.svc.AddToCart(ctx, 1, 1, nil)
	require.NoError(t, err)
	assert.Len(t, res.Lines, 2)

	res, err = f.svc.UpdateCartItem(ctx, 2, 3, domain.Attributes{"Size": "M"})
	require.NoError(t, err)
	lines := f.svc.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, domain.ProductID(3), lines[0].ProductID)
	assert.Equal(t, res.Lines, lines)

	_, err = f.svc.RemoveFromCart(ctx, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, f.svc.Lines())
	assert.Empty(t, decodeRecord(t, f.store))
	assert.Equal(t, 0, f.svc.Summary().Count)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodDelete, reqs[2].method)
	assert.NotContains(t, reqs[2].body, "quantity")
}

func TestAddToCart_SameIdentityMergesOnServer(t *testing.T) {
	srv := newSandboxServer(t)
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	for _, q := range []int{1, 2, 3} {
		_, err := f.svc.AddToCart(ctx, 101, q, domain.Attributes{"Size": "M", "Color": "Red"})
		require.NoError(t, err)
	}
	_, err := f.svc.AddToCart(ctx, 101, 1, domain.Attributes{"Color": "Blue", "Size": "M"})
	require.NoError(t, err)

	lines := f.svc.Lines()
	require.Len(t, lines, 2)
	red, ok := f.svc.Find(101, domain.Attributes{"Color": "Red", "Size": "M"})
	require.True(t, ok)
	assert.Equal(t, 6, red.Quantity)
	blue, ok := f.svc.Find(101, domain.Attributes{"Size": "M", "Color": "Blue"})
	require.True(t, ok)
	assert.Equal(t, 1, blue.Quantity)
	_, ok = f.svc.Find(101, nil)
	assert.False(t, ok)

	sum := f.svc.Summary()
	assert.Equal(t, 7, sum.Count)
	assert.Equal(t, "69.93", sum.Subtotal.String())
}

func TestUpdateCartItem_ClampsQuantity(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":true,"cart":[]}`})
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	_, err := f.svc.UpdateCartItem(ctx, 5, -3, domain.Attributes{})
	require.NoError(t, err)
	_, err = f.svc.UpdateCartItem(ctx, 5, 0, domain.Attributes{})
	require.NoError(t, err)
	_, err = f.svc.AddToCart(ctx, 5, -1, nil)
	require.NoError(t, err)

	for _, r := range srv.Requests() {
		assert.Equal(t, float64(1), r.body["quantity"], r.method)
		assert.Equal(t, float64(5), r.body["productId"])
	}
}

func TestLoad_RecordFormats(t *testing.T) {
	raw := `[{"productId":101,"variantAttributes":{"Size":"S"},"quantity":2,"price":9.99,"currency":"USD"}]`
	encoded, err := record.Encode([]domain.CartLine{{
		ProductID:         101,
		VariantAttributes: domain.Attributes{"Size": "S"},
		Quantity:          2,
		Price:             decimal.RequireFromString("9.99"),
		Currency:          "USD",
	}})
	require.NoError(t, err)

	cases := map[string]string{
		"percent encoded": encoded,
		"raw json":        raw,
		"form encoded":    url.QueryEscape(raw),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, "http://shop.test")
			require.NoError(t, f.store.Set(context.Background(), record.CartKey, value, 0))
			require.NoError(t, f.svc.Load(context.Background()))

			lines := f.svc.Lines()
			require.Len(t, lines, 1)
			assert.Equal(t, domain.ProductID(101), lines[0].ProductID)
			assert.Equal(t, domain.Attributes{"Size": "S"}, lines[0].VariantAttributes)
			assert.Equal(t, 2, lines[0].Quantity)
			assert.True(t, lines[0].Price.Equal(decimal.RequireFromString("9.99")))
			assert.Equal(t, "USD", lines[0].Currency)
		})
	}
}

func TestLoad_CorruptRecordIsEmptyCart(t *testing.T) {
	for _, value := range []string{"%7Bbroken", "not json at all", `{"productId":1}`, `[{"productId":1,"quantity":0}]`} {
		f := newFixture(t, "http://shop.test")
		require.NoError(t, f.store.Set(context.Background(), record.CartKey, value, 0))
		require.NoError(t, f.svc.Load(context.Background()), value)
		assert.Empty(t, f.svc.Lines(), value)
		assert.Equal(t, 0, f.svc.Summary().Count, value)
	}
}

func TestAttributesWithSpaceAndPlus_KeepLineIdentity(t *testing.T) {
	srv := newSandboxServer(t)
	f := newFixture(t, srv.URL)
	ctx := context.Background()
	attrs := domain.Attributes{"Color": "Navy Blue", "Size": "XL+"}

	_, err := f.svc.AddToCart(ctx, 101, 1, attrs)
	require.NoError(t, err)
	_, err = f.svc.UpdateCartItem(ctx, 101, 3, domain.Attributes{"Size": "XL+", "Color": "Navy Blue"})
	require.NoError(t, err)

	got, ok := f.svc.Find(101, attrs)
	require.True(t, ok)
	assert.Equal(t, 3, got.Quantity)
	assert.Len(t, f.svc.Lines(), 1)

	reloaded := New(nil, f.store)
	require.NoError(t, reloaded.Load(ctx))
	_, ok = reloaded.Find(101, attrs)
	assert.True(t, ok)

	_, err = f.svc.RemoveFromCart(ctx, 101, attrs)
	require.NoError(t, err)
	assert.Empty(t, f.svc.Lines())
}

func TestPersist_ClientRecordSurvivesFormDecoding(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":true,"cart":[{"productId":7,"quantity":1,"price":"3","currency":"USD","name":"C++ Primer","variantAttributes":{"Color":"Navy Blue","Size":"XL+"}}]}`})
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, 7, 1, domain.Attributes{"Color": "Navy Blue", "Size": "XL+"})
	require.NoError(t, err)

	value, ok, err := f.store.Get(ctx, record.CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, value, "+")

	formDecoded, err := url.QueryUnescape(value)
	require.NoError(t, err)
	var lines []domain.CartLine
	require.NoError(t, json.Unmarshal([]byte(formDecoded), &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "C++ Primer", lines[0].Name)
	assert.Equal(t, domain.Attributes{"Color": "Navy Blue", "Size": "XL+"}, lines[0].VariantAttributes)
}

func TestLoad_FormEncodedRecordWithSpaces(t *testing.T) {
	raw := `[{"productId":101,"variantAttributes":{"Color":"Navy Blue"},"quantity":1,"price":"9.99","currency":"USD","name":"Two words"}]`
	f := newFixture(t, "http://shop.test")
	require.NoError(t, f.store.Set(context.Background(), record.CartKey, url.QueryEscape(raw), 0))
	require.NoError(t, f.svc.Load(context.Background()))

	got, ok := f.svc.Find(101, domain.Attributes{"Color": "Navy Blue"})
	require.True(t, ok)
	assert.Equal(t, "Two words", got.Name)
}

func TestFailures_LeaveCartUntouched(t *testing.T) {
	cases := []struct {
		name    string
		reply   reply
		kind    domain.ErrorKind
		message string
	}{
		{name: "rejection", reply: reply{body: `{"success":false,"message":"Only 1 left in stock"}`}, kind: domain.KindServerRejection, message: "Only 1 left in stock"},
		{name: "html", reply: reply{body: `<html>maintenance</html>`}, kind: domain.KindMalformedResponse},
		{name: "missing cart", reply: reply{body: `{"success":true}`}, kind: domain.KindMalformedResponse},
		{name: "server down", reply: reply{status: http.StatusBadGateway, body: `bad gateway`}, kind: domain.KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newScriptedServer(t,
				reply{body: `{"success":true,"cart":[{"productId":7,"quantity":2,"price":"3.00","currency":"USD","variantAttributes":{}}]}`},
				tc.reply,
			)
			f := newFixture(t, srv.URL)
			ctx := context.Background()
			_, err := f.svc.AddToCart(ctx, 7, 2, nil)
			require.NoError(t, err)
			before := f.svc.Lines()
			stored, _, _ := f.store.Get(ctx, record.CartKey)

			res, err := f.svc.RemoveFromCart(ctx, 7, nil)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err))
			assert.False(t, res.Success)
			assert.Equal(t, before, res.Lines)
			assert.Equal(t, before, f.svc.Lines())
			after, _, _ := f.store.Get(ctx, record.CartKey)
			assert.Equal(t, stored, after)

			last, ok := f.notified.Last()
			require.True(t, ok)
			assert.Equal(t, notify.LevelError, last.Level)
			if tc.message != "" {
				assert.Equal(t, tc.message, res.Message)
				assert.Equal(t, tc.message, last.Message)
			}
		})
	}
}

func TestAddToCart_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	opened := false
	f := newFixture(t, addr, WithPanelOpener(func() { opened = true }))
	res, err := f.svc.AddToCart(context.Background(), 1, 1, nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.False(t, opened)
	assert.Empty(t, f.svc.Lines())
}

func TestSummary_UsesServerTotals(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":true,"count":9,"total":"20.00","taxTotal":"2.00","grandTotal":"22.50",
		"cart":[{"productId":1,"quantity":2,"price":"10.00","currency":"EUR","variantAttributes":{}}]}`})
	f := newFixture(t, srv.URL)
	_, err := f.svc.UpdateCartItem(context.Background(), 1, 2, nil)
	require.NoError(t, err)

	sum := f.svc.Summary()
	assert.Equal(t, 9, sum.Count)
	assert.Equal(t, "20", sum.Subtotal.String())
	assert.Equal(t, "2", sum.Tax.String())
	assert.Equal(t, "22.5", sum.Total.String())
	assert.Equal(t, "EUR", sum.Currency)
}

func TestPersist_PrefersServerCookieData(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":true,"cookieData":"%5B%5D","cart":[{"productId":1,"quantity":1,"price":"1","currency":"EUR","variantAttributes":{}}]}`})
	f := newFixture(t, srv.URL)
	_, err := f.svc.AddToCart(context.Background(), 1, 1, nil)
	require.NoError(t, err)

	value, ok, err := f.store.Get(context.Background(), record.CartKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "%5B%5D", value)
}

func TestRefreshCart_RetriesThenSucceeds(t *testing.T) {
	srv := newScriptedServer(t,
		reply{status: http.StatusServiceUnavailable, body: "busy"},
		reply{body: `{"success":true,"cart":[{"productId":4,"quantity":1,"price":"1","currency":"EUR","variantAttributes":{}}]}`},
	)
	f := newFixture(t, srv.URL, WithRefreshAttempts(3))
	res, err := f.svc.RefreshCart(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.svc.Lines(), 1)
	assert.Len(t, srv.Requests(), 2)
	assert.Equal(t, http.MethodGet, srv.Requests()[0].method)
}

func TestRefreshCart_FallsBackToRecord(t *testing.T) {
	srv := newScriptedServer(t, reply{status: http.StatusInternalServerError, body: "down"})
	f := newFixture(t, srv.URL, WithRefreshAttempts(2))
	ctx := context.Background()

	written, err := record.Encode([]domain.CartLine{{ProductID: 9, Quantity: 4, Price: decimal.NewFromInt(2), Currency: "EUR"}})
	require.NoError(t, err)
	require.NoError(t, f.store.Set(ctx, record.CartKey, written, 0))

	res, err := f.svc.RefreshCart(ctx)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.False(t, res.Success)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, domain.ProductID(9), res.Lines[0].ProductID)
	assert.Equal(t, 4, f.svc.Summary().Count)
	assert.Len(t, srv.Requests(), 2)

	last, ok := f.notified.Last()
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, last.Level)
}

func TestRefreshCart_RejectionIsNotRetried(t *testing.T) {
	srv := newScriptedServer(t, reply{body: `{"success":false,"message":"Session expired"}`})
	f := newFixture(t, srv.URL, WithRefreshAttempts(5))
	_, err := f.svc.RefreshCart(context.Background())
	assert.ErrorIs(t, err, domain.ErrServerRejection)
	assert.Len(t, srv.Requests(), 1)
}

func TestClear_DropsRecord(t *testing.T) {
	srv := newSandboxServer(t)
	f := newFixture(t, srv.URL)
	ctx := context.Background()
	_, err := f.svc.AddToCart(ctx, 101, 1, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx))
	assert.Empty(t, f.svc.Lines())
	_, ok, _ := f.store.Get(ctx, record.CartKey)
	assert.False(t, ok)

	res, err := f.svc.RefreshCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
}

func TestConcurrentAdds_AreSerialized(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := newSandboxServer(t)
	transport := &http.Transport{}
	store := newMemStore()
	client, err := apiclient.New(srv.URL,
		apiclient.WithHTTPClient(&http.Client{Transport: transport}),
		apiclient.WithRecords(store, record.CartKey),
	)
	require.NoError(t, err)
	var (
		countsMu sync.Mutex
		counts   []int
	)
	svc := New(client, store, WithObserver(func(sum Summary) {
		countsMu.Lock()
		counts = append(counts, sum.Count)
		countsMu.Unlock()
	}))
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddToCart(ctx, 101, 1, nil)
			assert.NoError(t, err)
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.RefreshCart(ctx)
			_ = svc.Lines()
		}()
	}
	wg.Wait()

	line, ok := svc.Find(101, domain.Attributes{})
	require.True(t, ok)
	assert.Equal(t, workers, line.Quantity)

	persisted := decodeRecord(t, store)
	require.Len(t, persisted, 1)
	assert.Equal(t, workers, persisted[0].Quantity)

	countsMu.Lock()
	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "summary went backwards at %d: %v", i, counts)
	}
	countsMu.Unlock()

	srv.Close()
	transport.CloseIdleConnections()
}
