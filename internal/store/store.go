// Package store owns the session state of a quote: the item list and the
// client record, mirrored to a kv.Storage after every mutation.
//
// A Store has a single writer and does no locking of its own; callers that
// serve concurrent requests must serialise access.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/klsinformatica/orcamento/internal/kv"
	"github.com/klsinformatica/orcamento/internal/logging"
	"github.com/klsinformatica/orcamento/internal/metrics"
	"github.com/klsinformatica/orcamento/internal/pricing"
	"github.com/klsinformatica/orcamento/internal/proposal"
	"github.com/klsinformatica/orcamento/internal/quote"
)

const maxIDAttempts = 8

// ErrIDExhausted is returned when no unused identifier could be generated.
var ErrIDExhausted = errors.New("could not generate an unused item id")

// Store is the quote session state.
type Store struct {
	storage kv.Storage
	log     logging.Logger
	metrics *metrics.Metrics
	newID   quote.IDGenerator
	now     func() time.Time

	items  []quote.Item
	client quote.ClientInfo
	// issued holds every id handed out or restored during the store's
	// lifetime, so removed ids are never reused.
	issued     map[string]struct{}
	persistErr error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load fallbacks and write failures.
func WithLogger(l logging.Logger) Option { return func(s *Store) { s.log = l } }

// WithMetrics enables counting of store operations.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Store) { s.metrics = m } }

// WithIDGenerator replaces quote.NewID as the source of item ids.
func WithIDGenerator(g quote.IDGenerator) Option { return func(s *Store) { s.newID = g } }

// WithClock sets the time source for ids and proposal dates.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New returns an empty store backed by storage. Call Initialize to restore
// persisted state.
func New(storage kv.Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		log:     logging.L,
		newID:   quote.NewID,
		now:     time.Now,
		items:   []quote.Item{},
		issued:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores both halves of the state independently. A missing,
// unreadable or malformed key falls back to its empty default and never
// affects the other key.
func (s *Store) Initialize() ([]quote.Item, quote.ClientInfo) {
	items, err := s.tryLoadItems()
	if err != nil {
		s.loadFallback(kv.KeyItems, err)
		items = []quote.Item{}
	}

	client, err := s.tryLoadClient()
	if err != nil {
		s.loadFallback(kv.KeyClient, err)
		client = quote.ClientInfo{}
	}

	s.items = items
	s.client = client
	for _, item := range items {
		s.issued[item.ID] = struct{}{}
	}

	s.log.WithFields(logging.Fields{
		"items":      len(items),
		"client_set": !client.IsEmpty(),
	}).Debug("quote store initialized")

	return s.Items(), s.client
}

func (s *Store) tryLoadItems() (items []quote.Item, err error) {
	defer recoverLoad(&err)

	raw, err := s.storage.Get(kv.KeyItems)
	if err != nil {
		return nil, err
	}
	return decodeItems(raw)
}

func (s *Store) tryLoadClient() (client quote.ClientInfo, err error) {
	defer recoverLoad(&err)

	raw, err := s.storage.Get(kv.KeyClient)
	if err != nil {
		return quote.ClientInfo{}, err
	}
	return decodeClient(raw)
}

func recoverLoad(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic while decoding: %v", ErrMalformed, r)
	}
}

func (s *Store) loadFallback(key string, err error) {
	reason := "unreadable"
	switch {
	case errors.Is(err, kv.ErrNotFound):
		reason = "absent"
	case errors.Is(err, ErrMalformed):
		reason = "malformed"
	}

	if s.metrics != nil {
		s.metrics.LoadFallbacks.WithLabelValues(key, reason).Inc()
	}

	entry := s.log.WithFields(logging.Fields{"key": key, "reason": reason})
	if reason == "absent" {
		entry.Debug("no persisted value, using default")
		return
	}
	entry.WithError(err).Warn("discarding persisted value, using default")
}

// AddItem validates c, appends a new item with a fresh id and persists the
// list. On a validation error nothing changes.
func (s *Store) AddItem(c quote.Candidate) (quote.Item, error) {
	if err := c.Validate(); err != nil {
		var verr *quote.ValidationError
		if s.metrics != nil && errors.As(err, &verr) {
			s.metrics.ValidationFailures.WithLabelValues(verr.Field).Inc()
		}
		return quote.Item{}, err
	}

	id, err := s.nextID()
	if err != nil {
		return quote.Item{}, err
	}

	item, err := quote.NewItem(id, c)
	if err != nil {
		return quote.Item{}, err
	}

	s.issued[id] = struct{}{}
	s.items = append(s.items, item)
	s.persistItems()

	if s.metrics != nil {
		s.metrics.ItemsAdded.Inc()
	}
	return item, nil
}

func (s *Store) nextID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newID(s.now())
		if err != nil {
			return "", fmt.Errorf("generate item id: %w", err)
		}
		if _, used := s.issued[id]; !used && id != "" {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

// RemoveItem deletes the item with id, if present, and persists the list.
func (s *Store) RemoveItem(id string) {
	kept := make([]quote.Item, 0, len(s.items))
	removed := false
	for _, item := range s.items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	s.items = kept
	s.persistItems()

	if removed && s.metrics != nil {
		s.metrics.ItemsRemoved.Inc()
	}
}

// UpdateClient merges p into the client record, persists and returns it.
func (s *Store) UpdateClient(p quote.ClientPatch) quote.ClientInfo {
	s.client = s.client.Apply(p)
	s.persistClient()
	return s.client
}

// ClearAll resets both halves of the state and deletes both keys.
func (s *Store) ClearAll() {
	s.items = []quote.Item{}
	s.client = quote.ClientInfo{}

	var firstErr error
	for _, key := range []string{kv.KeyItems, kv.KeyClient} {
		err := s.storage.Remove(key)
		if err != nil {
			s.writeFailed(key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.persistErr = firstErr
}

func (s *Store) persistItems() {
	raw, err := encodeItems(s.items)
	if err == nil {
		err = s.storage.Set(kv.KeyItems, raw)
	}
	s.recordWrite(kv.KeyItems, err)
}

func (s *Store) persistClient() {
	raw, err := encodeClient(s.client)
	if err == nil {
		err = s.storage.Set(kv.KeyClient, raw)
	}
	s.recordWrite(kv.KeyClient, err)
}

func (s *Store) recordWrite(key string, err error) {
	s.persistErr = err
	if err != nil {
		s.writeFailed(key, err)
	}
}

func (s *Store) writeFailed(key string, err error) {
	if s.metrics != nil {
		s.metrics.PersistFailures.WithLabelValues(key).Inc()
	}
	s.log.WithField("key", key).WithError(err).Warn("persisting quote state failed, keeping in-memory state")
}

// PersistErr returns the error of the most recent write, or nil if it
// succeeded. The in-memory state is authoritative either way.
func (s *Store) PersistErr() error {
	return s.persistErr
}

// Items returns a copy of the items in insertion order.
func (s *Store) Items() []quote.Item {
	out := make([]quote.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.items)
}

// Client returns the client record.
func (s *Store) Client() quote.ClientInfo {
	return s.client
}

// Totals prices the current items. Nothing is cached.
func (s *Store) Totals() pricing.Result {
	return pricing.Calculate(quote.PricingInputs(s.items))
}

// Proposal returns the printable figures for the current quote, or
// proposal.ErrEmptyQuote when there is nothing to print.
func (s *Store) Proposal(company string) (proposal.Proposal, error) {
	return proposal.Build(company, s.items, s.client, s.now())
}
