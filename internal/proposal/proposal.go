package proposal

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klsinformatica/orcamento/internal/pricing"
	"github.com/klsinformatica/orcamento/internal/quote"
)

// ErrEmptyQuote refuses printing a quote without items.
var ErrEmptyQuote = errors.New("adicione itens antes de imprimir")

const (
	defaultClientName = "Consumidor Final"
	missingField      = "-"

	// Disclaimer is printed in the footer of every proposal.
	Disclaimer = "Este documento é uma estimativa de preços válida sob consulta de estoque e prazos de entrega."
)

// Line is one printed item row.
type Line struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Proposal holds every figure a printed quote shows.
type Proposal struct {
	Company  string
	IssuedAt time.Time
	Client   quote.ClientInfo
	Lines    []Line
	Totals   pricing.Totals
}

// Generator renders a proposal into a document.
type Generator interface {
	Generate(p Proposal) ([]byte, error)
}

// Build assembles a proposal, refusing empty item lists.
func Build(company string, items []quote.Item, client quote.ClientInfo, now time.Time) (Proposal, error) {
	if len(items) == 0 {
		return Proposal{}, ErrEmptyQuote
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal(),
		})
	}

	return Proposal{
		Company:  company,
		IssuedAt: now,
		Client:   client,
		Lines:    lines,
		Totals:   pricing.Calculate(quote.PricingInputs(items)).Totals,
	}, nil
}

// ClientName returns the printed client name.
func (p Proposal) ClientName() string {
	return orDefault(p.Client.Name, defaultClientName)
}

func (p Proposal) ClientPhone() string   { return orDefault(p.Client.Phone, missingField) }
func (p Proposal) ClientAddress() string { return orDefault(p.Client.Address, missingField) }
func (p Proposal) ClientEmail() string   { return orDefault(p.Client.Email, missingField) }

// IssuedDate formats the issue date as dd/mm/yyyy.
func (p Proposal) IssuedDate() string {
	return p.IssuedAt.Format("02/01/2006")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
