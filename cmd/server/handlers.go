package main

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"github.com/klsinformatica/orcamento/internal/logging"
	"github.com/klsinformatica/orcamento/internal/metrics"
	"github.com/klsinformatica/orcamento/internal/pricing"
	"github.com/klsinformatica/orcamento/internal/proposal"
	"github.com/klsinformatica/orcamento/internal/quote"
	"github.com/klsinformatica/orcamento/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	msgEmptyQuote   = "Adicione itens antes de imprimir."
	msgPersistFail  = "Não foi possível salvar o orçamento neste dispositivo. Os dados continuam disponíveis até a página ser fechada."
	msgInvalidBody  = "Requisição inválida."
	msgInternalFail = "Erro interno. Tente novamente."
)

var validationMessages = map[error]string{
	quote.ErrDescriptionRequired: "Digite a descrição do produto/serviço.",
	quote.ErrInvalidQuantity:     "A quantidade deve ser um número inteiro maior ou igual a 1.",
	quote.ErrInvalidUnitPrice:    "O preço deve ser maior que zero.",
	quote.ErrUnitPriceTooLarge:   "O preço deve ser no máximo R$ 1.000.000.000.000,00.",
	quote.ErrUnitPricePrecision:  "O preço deve ter no máximo duas casas decimais.",
}

type server struct {
	mu      sync.Mutex
	store   *store.Store
	pdf     proposal.Generator
	metrics *metrics.Metrics
	company string
	log     logging.Logger
}

func newServer(st *store.Store, pdf proposal.Generator, m *metrics.Metrics, company string, l logging.Logger) *server {
	return &server{store: st, pdf: pdf, metrics: m, company: company, log: l}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverPanics)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/quote", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(s.serialize)
		r.Get("/", s.handleQuote)
		r.Delete("/", s.handleClear)
		r.Post("/items", s.handleAddItem)
		r.Delete("/items/{id}", s.handleRemoveItem)
		r.Patch("/client", s.handleUpdateClient)
		r.Get("/proposal.txt", s.handleProposalText)
		r.Get("/proposal.pdf", s.handleProposalPDF)
	})
	return r
}

type itemResponse struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	Quantity         int    `json:"quantity"`
	UnitPrice        string `json:"unitPrice"`
	Subtotal         string `json:"subtotal"`
	UnitPriceDisplay string `json:"unitPriceDisplay"`
	SubtotalDisplay  string `json:"subtotalDisplay"`
}

type clientResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type totalsResponse struct {
	Raw         string `json:"raw"`
	Margin      string `json:"margin"`
	CardTax     string `json:"cardTax"`
	Cash        string `json:"cash"`
	Card        string `json:"card"`
	RawDisplay  string `json:"rawDisplay"`
	CashDisplay string `json:"cashDisplay"`
	CardDisplay string `json:"cardDisplay"`
}

type quoteResponse struct {
	Item      *itemResponse  `json:"item,omitempty"`
	Items     []itemResponse `json:"items"`
	Client    clientResponse `json:"client"`
	Totals    totalsResponse `json:"totals"`
	Persisted bool           `json:"persisted"`
	Warning   string         `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func newItemResponse(item quote.Item) itemResponse {
	subtotal := item.Subtotal()
	return itemResponse{
		ID:               item.ID,
		Description:      item.Description,
		Quantity:         item.Quantity,
		UnitPrice:        item.UnitPrice.StringFixed(2),
		Subtotal:         subtotal.StringFixed(2),
		UnitPriceDisplay: proposal.FormatBRL(item.UnitPrice),
		SubtotalDisplay:  proposal.FormatBRL(subtotal),
	}
}

func newTotalsResponse(res pricing.Result) totalsResponse {
	return totalsResponse{
		Raw:         res.Totals.Raw.StringFixed(2),
		Margin:      res.Breakdown.Margin.StringFixed(2),
		CardTax:     res.Breakdown.CardTax.StringFixed(2),
		Cash:        res.Totals.Cash.StringFixed(2),
		Card:        res.Totals.Card.StringFixed(2),
		RawDisplay:  proposal.FormatBRL(res.Totals.Raw),
		CashDisplay: proposal.FormatBRL(res.Totals.Cash),
		CardDisplay: proposal.FormatBRL(res.Totals.Card),
	}
}

// snapshot renders the current store state. Totals are recomputed here.
func (s *server) snapshot() quoteResponse {
	items := s.store.Items()
	resp := quoteResponse{
		Items:     make([]itemResponse, 0, len(items)),
		Totals:    newTotalsResponse(s.store.Totals()),
		Persisted: s.store.PersistErr() == nil,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, newItemResponse(item))
	}

	c := s.store.Client()
	resp.Client = clientResponse{Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address, Notes: c.Notes}

	if !resp.Persisted {
		resp.Warning = msgPersistFail
	}
	return resp
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	candidate, err := readCandidate(r)
	if err != nil {
		s.writeAddError(w, r, err)
		return
	}

	item, err := s.store.AddItem(candidate)
	if err != nil {
		s.writeAddError(w, r, err)
		return
	}

	resp := s.snapshot()
	added := newItemResponse(item)
	resp.Item = &added
	writeJSON(w, http.StatusCreated, resp)
}

func (s *server) writeAddError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *quote.ValidationError
	switch {
	case errors.As(err, &verr):
		msg, ok := validationMessages[errors.Unwrap(verr)]
		if !ok {
			msg = verr.Error()
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: msg, Field: verr.Field})
	case errors.Is(err, errBadBody):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	default:
		s.log.WithContext(r.Context()).WithError(err).Error("add item failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalFail})
	}
}

func (s *server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.store.RemoveItem(chi.URLParam(r, "id"))
	if err := s.store.PersistErr(); err != nil {
		writeJSON(w, http.StatusOK, s.snapshot())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	patch, err := readClientPatch(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		return
	}
	s.store.UpdateClient(patch)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.store.ClearAll()
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *server) handleProposalText(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printable(w)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := proposal.WriteText(&buf, p); err != nil {
		s.log.WithContext(r.Context()).WithError(err).Error("render text proposal failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalFail})
		return
	}
	s.rendered("txt")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *server) handleProposalPDF(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printable(w)
	if !ok {
		return
	}

	doc, err := s.pdf.Generate(p)
	if err != nil {
		s.log.WithContext(r.Context()).WithError(err).Error("render pdf proposal failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalFail})
		return
	}
	s.rendered("pdf")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="orcamento.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// printable applies the print guard. It writes the 409 itself when the
// quote has no items.
func (s *server) printable(w http.ResponseWriter) (proposal.Proposal, bool) {
	p, err := s.store.Proposal(s.company)
	if errors.Is(err, proposal.ErrEmptyQuote) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: msgEmptyQuote})
		return proposal.Proposal{}, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternalFail})
		return proposal.Proposal{}, false
	}
	return p, true
}

func (s *server) rendered(format string) {
	if s.metrics != nil {
		s.metrics.ProposalsRendered.WithLabelValues(format).Inc()
	}
}

var errBadBody = errors.New("malformed request body")

type candidateBody struct {
	Description string          `json:"description"`
	Quantity    jsoniter.Number `json:"quantity"`
	UnitPrice   jsoniter.Number `json:"unitPrice"`
}

// readCandidate accepts a JSON body or form values. A missing quantity
// defaults to 1. Unparseable numbers are left invalid for the store to reject.
func readCandidate(r *http.Request) (quote.Candidate, error) {
	var body candidateBody
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return quote.Candidate{}, errBadBody
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return quote.Candidate{}, errBadBody
		}
		body.Description = r.PostForm.Get("description")
		body.Quantity = jsoniter.Number(strings.TrimSpace(r.PostForm.Get("quantity")))
		body.UnitPrice = jsoniter.Number(strings.TrimSpace(r.PostForm.Get("unitPrice")))
	}

	c := quote.Candidate{Description: body.Description, Quantity: 1}
	if q := string(body.Quantity); q != "" {
		c.Quantity = quote.ParseQuantity(q)
	}
	c.UnitPrice = quote.ParseUnitPrice(string(body.UnitPrice))

	return c, nil
}

type clientBody struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

func readClientPatch(r *http.Request) (quote.ClientPatch, error) {
	var body clientBody
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return quote.ClientPatch{}, errBadBody
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return quote.ClientPatch{}, errBadBody
		}
		body.Name = formValue(r, "name")
		body.Email = formValue(r, "email")
		body.Phone = formValue(r, "phone")
		body.Address = formValue(r, "address")
		body.Notes = formValue(r, "notes")
	}

	return quote.ClientPatch{
		Name:    body.Name,
		Email:   body.Email,
		Phone:   body.Phone,
		Address: body.Address,
		Notes:   body.Notes,
	}, nil
}

// formValue returns nil when key was not submitted at all.
func formValue(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L.WithError(err).Error("encode response failed")
	}
}
