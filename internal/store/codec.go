package store

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"github.com/klsinformatica/orcamento/internal/quote"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformed marks persisted content that cannot be restored.
var ErrMalformed = errors.New("malformed persisted value")

type itemRecord struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   jsoniter.Number `json:"unitPrice"`
}

type clientRecord struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func encodeItems(items []quote.Item) (string, error) {
	records := make([]itemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, itemRecord{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   jsoniter.Number(item.UnitPrice.String()),
		})
	}

	raw, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(raw), nil
}

// decodeItems restores an item list and rejects any list that would break
// the store invariants: every id present and unique, every item valid.
func decodeItems(raw string) ([]quote.Item, error) {
	var records []itemRecord
	if err := json.UnmarshalFromString(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: items is not a list", ErrMalformed)
	}

	items := make([]quote.Item, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrMalformed, i)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item id %q", ErrMalformed, rec.ID)
		}
		seen[rec.ID] = struct{}{}

		price, err := decimal.NewFromString(string(rec.UnitPrice))
		if err != nil {
			return nil, fmt.Errorf("%w: item %q unit price: %v", ErrMalformed, rec.ID, err)
		}

		item, err := quote.NewItem(rec.ID, quote.Candidate{
			Description: rec.Description,
			Quantity:    rec.Quantity,
			UnitPrice:   price,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %v", ErrMalformed, rec.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func encodeClient(c quote.ClientInfo) (string, error) {
	raw, err := json.Marshal(clientRecord(c))
	if err != nil {
		return "", fmt.Errorf("encode client: %w", err)
	}
	return string(raw), nil
}

func decodeClient(raw string) (quote.ClientInfo, error) {
	var rec *clientRecord
	if err := json.UnmarshalFromString(raw, &rec); err != nil {
		return quote.ClientInfo{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec == nil {
		return quote.ClientInfo{}, fmt.Errorf("%w: client is null", ErrMalformed)
	}
	return quote.ClientInfo(*rec), nil
}
