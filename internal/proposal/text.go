package proposal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteText writes a plain-text version of the proposal.
func WriteText(w io.Writer, p Proposal) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Orçamento - %s\n", p.Company)
	fmt.Fprintln(bw, "Proposta de Serviços")
	fmt.Fprintf(bw, "Emitido: %s\n\n", p.IssuedDate())

	fmt.Fprintln(bw, "Dados do Cliente:")
	fmt.Fprintf(bw, "- Cliente / Razão: %s\n", p.ClientName())
	fmt.Fprintf(bw, "- Telefone: %s\n", p.ClientPhone())
	fmt.Fprintf(bw, "- Endereço de Serviço: %s\n", p.ClientAddress())
	fmt.Fprintf(bw, "- E-mail: %s\n\n", p.ClientEmail())

	fmt.Fprintln(bw, "Itens:")
	for _, line := range p.Lines {
		fmt.Fprintf(bw, "- %s x%d @ %s = %s\n",
			line.Description,
			line.Quantity,
			FormatBRL(line.UnitPrice),
			FormatBRL(line.Subtotal),
		)
	}

	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "Subtotal Líquido: %s\n", FormatBRL(p.Totals.Raw))
	fmt.Fprintf(bw, "Total à Vista (PIX / Dinheiro): %s\n", FormatBRL(p.Totals.Cash))
	fmt.Fprintf(bw, "Cartão de Crédito: %s\n", FormatBRL(p.Totals.Card))

	if notes := strings.TrimSpace(p.Client.Notes); notes != "" {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "Informações Importantes / Condições:")
		fmt.Fprintln(bw, notes)
	}

	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "%s - %s\n", p.Company, Disclaimer)

	return bw.Flush()
}
