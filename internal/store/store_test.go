package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/klsinformatica/orcamento/internal/db"
	"github.com/klsinformatica/orcamento/internal/kv"
	"github.com/klsinformatica/orcamento/internal/kv/mocks"
	"github.com/klsinformatica/orcamento/internal/logging"
	"github.com/klsinformatica/orcamento/internal/metrics"
	"github.com/klsinformatica/orcamento/internal/migrations"
	"github.com/klsinformatica/orcamento/internal/proposal"
	"github.com/klsinformatica/orcamento/internal/quote"
)

var fixedNow = time.Date(2026, 10, 15, 10, 30, 0, 0, time.UTC)

func newStore(storage kv.Storage, opts ...Option) *Store {
	base := []Option{
		WithLogger(logging.Discard()),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(storage, append(base, opts...)...)
}

func sequenceIDs(ids ...string) quote.IDGenerator {
	i := 0
	return func(time.Time) (string, error) {
		id := ids[i%len(ids)]
		i++
		return id, nil
	}
}

func candidate(desc string, qty int, price string) quote.Candidate {
	return quote.Candidate{Description: desc, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func requireSameItems(t *testing.T, want, got []quote.Item) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID, "id at %d", i)
		assert.Equal(t, want[i].Description, got[i].Description, "description at %d", i)
		assert.Equal(t, want[i].Quantity, got[i].Quantity, "quantity at %d", i)
		assert.True(t, want[i].UnitPrice.Equal(got[i].UnitPrice), "unit price at %d: %s != %s", i, want[i].UnitPrice, got[i].UnitPrice)
	}
}

func TestInitializeWithEmptyStorage(t *testing.T) {
	s := newStore(kv.NewMemory())

	items, client := s.Initialize()

	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, quote.ClientInfo{}, client)
}

func TestAddItemRejectsInvalidCandidates(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage)
	s.Initialize()
	_, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)

	for name, c := range map[string]quote.Candidate{
		"empty description":      candidate("", 1, "10"),
		"whitespace description": candidate("   ", 1, "10"),
		"zero price":             candidate("Formatação", 1, "0"),
		"negative price":         candidate("Formatação", 1, "-5"),
		"zero quantity":          candidate("Formatação", 0, "5"),
	} {
		t.Run(name, func(t *testing.T) {
			before := s.Items()

			item, err := s.AddItem(c)

			var verr *quote.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, quote.Item{}, item)
			requireSameItems(t, before, s.Items())
		})
	}
}

func TestAddItemAppendsWithDistinctIDsAndPersists(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage)
	s.Initialize()

	first, err := s.AddItem(candidate("Cabo HDMI", 3, "25.00"))
	require.NoError(t, err)
	second, err := s.AddItem(candidate("  Formatação ", 1, "80.00"))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "Formatação", second.Description)
	assert.Equal(t, []string{first.ID, second.ID}, []string{s.Items()[0].ID, s.Items()[1].ID})

	raw, err := storage.Get(kv.KeyItems)
	require.NoError(t, err)
	assert.Contains(t, raw, `"unitPrice":25`)
	assert.Contains(t, raw, `"quantity":3`)
	assert.Contains(t, raw, `"id":"`+first.ID+`"`)
	assert.NoError(t, s.PersistErr())
}

func TestItemsReturnsCopy(t *testing.T) {
	s := newStore(kv.NewMemory())
	s.Initialize()
	_, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)

	items := s.Items()
	items[0].Description = "changed"

	assert.Equal(t, "Cabo HDMI", s.Items()[0].Description)
}

func TestRemoveItem(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage, WithIDGenerator(sequenceIDs("a", "b", "c")))
	s.Initialize()
	for _, c := range []quote.Candidate{
		candidate("Cabo HDMI", 3, "25"),
		candidate("Formatação", 1, "80"),
		candidate("Mouse", 1, "45.90"),
	} {
		_, err := s.AddItem(c)
		require.NoError(t, err)
	}
	before := s.Items()

	s.RemoveItem("missing")
	requireSameItems(t, before, s.Items())

	s.RemoveItem("b")
	requireSameItems(t, []quote.Item{before[0], before[2]}, s.Items())

	restored := newStore(storage)
	items, _ := restored.Initialize()
	requireSameItems(t, []quote.Item{before[0], before[2]}, items)
}

func TestRemovedIDsAreNotReissued(t *testing.T) {
	s := newStore(kv.NewMemory(), WithIDGenerator(sequenceIDs("a", "a", "b")))
	s.Initialize()

	first, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)
	s.RemoveItem(first.ID)

	second, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)

	assert.Equal(t, "a", first.ID)
	assert.Equal(t, "b", second.ID)
}

func TestAddItemFailsWhenIDsAreExhausted(t *testing.T) {
	s := newStore(kv.NewMemory(), WithIDGenerator(sequenceIDs("same")))
	s.Initialize()
	_, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)

	_, err = s.AddItem(candidate("Mouse", 1, "10"))

	assert.ErrorIs(t, err, ErrIDExhausted)
	assert.Equal(t, 1, s.Len())
}

func TestRestoredIDsAreNotReissued(t *testing.T) {
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyItems, `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":10}]`))

	s := newStore(storage, WithIDGenerator(sequenceIDs("a", "z")))
	s.Initialize()
	item, err := s.AddItem(candidate("Mouse", 1, "10"))
	require.NoError(t, err)

	assert.Equal(t, "z", item.ID)
}

func TestUpdateClientMergesAndPersists(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage)
	s.Initialize()

	name, phone, notes := "Maria Silva", "11 98888-7777", "Garantia 90 dias"
	s.UpdateClient(quote.ClientPatch{Name: &name, Phone: &phone})
	got := s.UpdateClient(quote.ClientPatch{Notes: &notes})

	want := quote.ClientInfo{Name: name, Phone: phone, Notes: notes}
	assert.Equal(t, want, got)
	assert.Equal(t, want, s.Client())

	raw, err := storage.Get(kv.KeyClient)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Maria Silva","email":"","phone":"11 98888-7777","address":"","notes":"Garantia 90 dias"}`, raw)
}

func TestClearAllDeletesKeys(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage)
	s.Initialize()
	name := "Maria"
	_, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)
	s.UpdateClient(quote.ClientPatch{Name: &name})

	s.ClearAll()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, quote.ClientInfo{}, s.Client())
	assert.False(t, storage.Has(kv.KeyItems))
	assert.False(t, storage.Has(kv.KeyClient))

	items, client := newStore(storage).Initialize()
	assert.Empty(t, items)
	assert.Equal(t, quote.ClientInfo{}, client)
}

func TestRoundTripThroughSQLite(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, migrations.Up(database))
	storage := kv.NewSQLite(database)

	s := newStore(storage)
	s.Initialize()
	for _, c := range []quote.Candidate{
		candidate("Instalação Windows", 1, "150.00"),
		candidate("Cabo HDMI \"2m\"", 3, "25.50"),
		candidate("Memória RAM 8GB", 2, "199.99"),
	} {
		_, err := s.AddItem(c)
		require.NoError(t, err)
	}
	name, email, address := "Jõao & Filhos", "contato@example.com", "Rua A, 10"
	s.UpdateClient(quote.ClientPatch{Name: &name, Email: &email, Address: &address})

	restored := newStore(storage)
	items, client := restored.Initialize()

	requireSameItems(t, s.Items(), items)
	assert.Equal(t, s.Client(), client)
}

func TestInitializeHalvesFallBackIndependently(t *testing.T) {
	const validItems = `[{"id":"x1","description":"Cabo HDMI","quantity":3,"unitPrice":25}]`
	const validClient = `{"name":"Maria","email":"m@example.com","phone":"","address":"","notes":""}`

	badItems := map[string]string{
		"not json":          `not json`,
		"null":              `null`,
		"object":            `{"id":"x"}`,
		"missing id":        `[{"description":"Cabo","quantity":1,"unitPrice":10}]`,
		"duplicate id":      `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":10},{"id":"a","description":"Mouse","quantity":1,"unitPrice":10}]`,
		"zero price":        `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":0}]`,
		"text price":        `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":"abc"}]`,
		"fractional qty":    `[{"id":"a","description":"Cabo","quantity":1.5,"unitPrice":10}]`,
		"blank description": `[{"id":"a","description":"  ","quantity":1,"unitPrice":10}]`,
		"huge price":        `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":1e50000000}]`,
		"sub-cent price":    `[{"id":"a","description":"Cabo","quantity":1,"unitPrice":10.001}]`,
	}
	for name, raw := range badItems {
		t.Run("items "+name, func(t *testing.T) {
			storage := kv.NewMemory()
			require.NoError(t, storage.Set(kv.KeyItems, raw))
			require.NoError(t, storage.Set(kv.KeyClient, validClient))

			items, client := newStore(storage).Initialize()

			assert.Empty(t, items)
			assert.Equal(t, quote.ClientInfo{Name: "Maria", Email: "m@example.com"}, client)
		})
	}

	badClients := map[string]string{
		"not json": `{{`,
		"null":     `null`,
		"list":     `["Maria"]`,
		"number":   `42`,
	}
	for name, raw := range badClients {
		t.Run("client "+name, func(t *testing.T) {
			storage := kv.NewMemory()
			require.NoError(t, storage.Set(kv.KeyItems, validItems))
			require.NoError(t, storage.Set(kv.KeyClient, raw))

			items, client := newStore(storage).Initialize()

			require.Len(t, items, 1)
			assert.Equal(t, "x1", items[0].ID)
			assert.Equal(t, quote.ClientInfo{}, client)
		})
	}
}

func TestInitializeAcceptsPartialClientRecord(t *testing.T) {
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyClient, `{"name":"Maria"}`))

	_, client := newStore(storage).Initialize()

	assert.Equal(t, quote.ClientInfo{Name: "Maria"}, client)
}

func TestInitializeSurvivesReadFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockStorage(ctrl)

	storage.EXPECT().Get(kv.KeyItems).Return("", errors.New("storage disabled"))
	storage.EXPECT().Get(kv.KeyClient).Return(`{"name":"Maria"}`, nil)

	m := metrics.New()
	items, client := newStore(storage, WithMetrics(m)).Initialize()

	assert.Empty(t, items)
	assert.Equal(t, "Maria", client.Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadFallbacks.WithLabelValues(kv.KeyItems, "unreadable")))
}

func TestWriteFailureDoesNotMaskMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockStorage(ctrl)
	writeErr := errors.New("quota exceeded")

	storage.EXPECT().Get(gomock.Any()).Return("", kv.ErrNotFound).Times(2)
	gomock.InOrder(
		storage.EXPECT().Set(kv.KeyItems, gomock.Any()).Return(writeErr),
		storage.EXPECT().Set(kv.KeyItems, gomock.Any()).Return(nil),
	)

	m := metrics.New()
	s := newStore(storage, WithMetrics(m))
	s.Initialize()

	item, err := s.AddItem(candidate("Instalação Windows", 1, "150.00"))
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, 1, s.Len())
	assert.ErrorIs(t, s.PersistErr(), writeErr)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures.WithLabelValues(kv.KeyItems)))

	_, err = s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)
	assert.NoError(t, s.PersistErr())
	assert.Equal(t, 2, s.Len())
}

func TestClearAllWithFailingStorageStillResetsState(t *testing.T) {
	storage := kv.NewMemory()
	s := newStore(storage)
	s.Initialize()
	_, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)

	storage.FailWrites = true
	s.ClearAll()

	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.PersistErr(), kv.ErrUnavailable)
	assert.True(t, storage.Has(kv.KeyItems))
}

func TestTotalsScenarios(t *testing.T) {
	tests := []struct {
		name       string
		candidates []quote.Candidate
		raw        string
		cash       string
		card       string
	}{
		{
			name:       "single service",
			candidates: []quote.Candidate{candidate("Instalação Windows", 1, "150.00")},
			raw:        "150.00", cash: "183.00", card: "186.00",
		},
		{
			name: "two items",
			candidates: []quote.Candidate{
				candidate("Cabo HDMI", 3, "25.00"),
				candidate("Formatação", 1, "80.00"),
			},
			raw: "155.00", cash: "189.10", card: "192.20",
		},
		{
			name: "empty",
			raw:  "0", cash: "0", card: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(kv.NewMemory())
			s.Initialize()
			for _, c := range tt.candidates {
				_, err := s.AddItem(c)
				require.NoError(t, err)
			}

			totals := s.Totals().Totals
			assert.True(t, totals.Raw.Equal(decimal.RequireFromString(tt.raw)), "raw %s", totals.Raw)
			assert.True(t, totals.Cash.Equal(decimal.RequireFromString(tt.cash)), "cash %s", totals.Cash)
			assert.True(t, totals.Card.Equal(decimal.RequireFromString(tt.card)), "card %s", totals.Card)
		})
	}
}

func TestTotalsFollowMutations(t *testing.T) {
	s := newStore(kv.NewMemory())
	s.Initialize()
	item, err := s.AddItem(candidate("Formatação", 1, "80"))
	require.NoError(t, err)
	assert.True(t, s.Totals().Totals.Raw.Equal(decimal.NewFromInt(80)))

	s.RemoveItem(item.ID)
	assert.True(t, s.Totals().Totals.Raw.IsZero())
}

func TestProposalGuard(t *testing.T) {
	s := newStore(kv.NewMemory())
	s.Initialize()

	_, err := s.Proposal("KLSINFORMATICA")
	assert.ErrorIs(t, err, proposal.ErrEmptyQuote)

	_, err = s.AddItem(candidate("Instalação Windows", 1, "150.00"))
	require.NoError(t, err)

	p, err := s.Proposal("KLSINFORMATICA")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, p.IssuedAt)
	assert.Equal(t, "KLSINFORMATICA", p.Company)
	assert.True(t, p.Totals.Cash.Equal(decimal.RequireFromString("183")))
}

func TestMetricsCountMutations(t *testing.T) {
	m := metrics.New()
	s := newStore(kv.NewMemory(), WithMetrics(m))
	s.Initialize()

	item, err := s.AddItem(candidate("Cabo HDMI", 1, "10"))
	require.NoError(t, err)
	_, err = s.AddItem(candidate("", 1, "10"))
	require.Error(t, err)
	s.RemoveItem(item.ID)
	s.RemoveItem(item.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues(quote.FieldDescription)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoadFallbacks.WithLabelValues(kv.KeyItems, "absent"))+
		testutil.ToFloat64(m.LoadFallbacks.WithLabelValues(kv.KeyClient, "absent")))
}
