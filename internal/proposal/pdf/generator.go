package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/klsinformatica/orcamento/internal/logging"
	"github.com/klsinformatica/orcamento/internal/proposal"
)

const (
	fontFamily   = "Helvetica"
	pageWidth    = 190.0
	bottomMargin = 20.0
)

var accent = struct{ r, g, b int }{234, 88, 12}

// Generator renders proposals as A4 PDF documents.
type Generator struct {
	log logging.Logger
}

// New returns a PDF generator that logs through l.
func New(l logging.Logger) *Generator {
	return &Generator{log: l}
}

var _ proposal.Generator = (*Generator)(nil)

func (g *Generator) Generate(p proposal.Proposal) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Orçamento "+p.Company), false)
	pdf.SetAuthor(tr(p.Company), false)
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, bottomMargin)
	pdf.AddPage()

	// Header
	pdf.SetFont(fontFamily, "B", 22)
	pdf.SetTextColor(accent.r, accent.g, accent.b)
	pdf.CellFormat(pageWidth/2, 10, tr("Orçamento"), "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(pageWidth/2, 10, tr("Emitido: "+p.IssuedDate()), "", 1, "R", false, 0, "")
	pdf.SetFont(fontFamily, "B", 11)
	pdf.CellFormat(0, 6, tr(p.Company+" - Proposta de Serviços"), "B", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Client
	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(0, 6, tr("Dados do Cliente"), "", 1, "L", false, 0, "")
	g.clientRow(pdf, tr, "Cliente / Razão", p.ClientName(), "Telefone", p.ClientPhone())
	g.clientRow(pdf, tr, "Endereço de Serviço", p.ClientAddress(), "E-mail", p.ClientEmail())
	pdf.Ln(4)

	// Items
	widths := []float64{100, 20, 35, 35}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(accent.r, accent.g, accent.b)
	pdf.SetTextColor(255, 255, 255)
	for i, title := range []string{"Descrição Detalhada", "Qtd", "Preço Unit.", "Total Item"} {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, tr(title), "", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(0, 0, 0)
	for _, line := range p.Lines {
		g.itemRow(pdf, tr, widths, line)
	}
	pdf.Ln(4)

	// Totals
	g.totalRow(pdf, tr, "Subtotal Líquido", proposal.FormatBRL(p.Totals.Raw), false)
	g.totalRow(pdf, tr, "TOTAL À VISTA - PIX / Dinheiro", proposal.FormatBRL(p.Totals.Cash), true)
	g.totalRow(pdf, tr, "Cartão de Crédito - Consulte parcelas", proposal.FormatBRL(p.Totals.Card), false)

	if notes := strings.TrimSpace(p.Client.Notes); notes != "" {
		pdf.Ln(6)
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(0, 6, tr("Informações Importantes / Condições"), "", 1, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.MultiCell(0, 5, tr(notes), "", "L", false)
	}

	// Footer
	pdf.Ln(10)
	pdf.SetFont(fontFamily, "I", 8)
	pdf.MultiCell(0, 4, tr(p.Company+" - "+proposal.Disclaimer), "T", "L", false)
	pdf.Ln(12)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.CellFormat(0, 5, tr(p.Company), "", 1, "R", false, 0, "")
	pdf.SetFont(fontFamily, "", 8)
	pdf.CellFormat(0, 4, tr("Responsável Comercial"), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.log.WithError(err).Error("proposal pdf: output failed")
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) clientRow(pdf *gofpdf.Fpdf, tr func(string) string, leftLabel, leftValue, rightLabel, rightValue string) {
	const lineHeight = 6.0
	half := pageWidth / 2

	pdf.SetFont(fontFamily, "", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(half, 4, tr(leftLabel), "", 0, "L", false, 0, "")
	pdf.CellFormat(half, 4, tr(rightLabel), "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(0, 0, 0)
	left, right := tr(leftValue), tr(rightValue)
	rows := max(len(splitText(pdf, left, half)), len(splitText(pdf, right, half)))
	height := lineHeight * float64(rows)
	ensureSpace(pdf, height)

	x, y := pdf.GetXY()
	pdf.MultiCell(half, lineHeight, left, "", "L", false)
	pdf.SetXY(x+half, y)
	pdf.MultiCell(half, lineHeight, right, "", "L", false)
	pdf.SetXY(x, y+height)
}

// itemRow wraps the description over as many lines as it needs and sizes
// the numeric cells to match.
func (g *Generator) itemRow(pdf *gofpdf.Fpdf, tr func(string) string, widths []float64, line proposal.Line) {
	const lineHeight = 6.0

	desc := tr(line.Description)
	height := lineHeight * float64(len(splitText(pdf, desc, widths[0])))
	ensureSpace(pdf, height)

	x, y := pdf.GetXY()
	pdf.MultiCell(widths[0], lineHeight, desc, "B", "L", false)
	pdf.SetXY(x+widths[0], y)
	pdf.CellFormat(widths[1], height, fmt.Sprintf("x%d", line.Quantity), "B", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2], height, tr(proposal.FormatBRL(line.UnitPrice)), "B", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], height, tr(proposal.FormatBRL(line.Subtotal)), "B", 1, "R", false, 0, "")
}

func (g *Generator) totalRow(pdf *gofpdf.Fpdf, tr func(string) string, label, value string, highlight bool) {
	style := ""
	if highlight {
		style = "B"
		pdf.SetTextColor(accent.r, accent.g, accent.b)
	}
	pdf.SetFont(fontFamily, style, 11)
	pdf.CellFormat(pageWidth-50, 7, tr(label), "", 0, "R", false, 0, "")
	pdf.CellFormat(50, 7, tr(value), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// splitText breaks s into the lines MultiCell would print at width w with
// the current font.
func splitText(pdf *gofpdf.Fpdf, s string, w float64) []string {
	var lines []string
	for _, l := range pdf.SplitLines([]byte(s), w) {
		lines = append(lines, string(l))
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// ensureSpace starts a new page when a block of height h would cross the
// bottom margin, so rows are never split.
func ensureSpace(pdf *gofpdf.Fpdf, h float64) {
	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+h > pageHeight-bottomMargin {
		pdf.AddPage()
	}
}
