package openai

import (
	"strings"

	"github.com/vendorlens/reconciler/internal/domain"
)

func buildInvoiceSystemPrompt(terms *domain.ContractTermSet) string {
	parts := []string{
		"You are an invoice parser for accounts-payable review. Return ONLY JSON that matches the JSON Schema provided.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"All money amounts are decimal strings with a dot separator, no currency symbols, no thousands separators.",
		"Extract every billed line item with description, quantity, unit price and line total.",
		"If payment terms (e.g. 'Net 30') are printed on the document, include them under 'payment_terms'.",
		"Report your certainty in the extraction under 'confidence' (0 to 1).",
		"Never output null. If a field is not present, omit it.",
	}
	if terms != nil {
		parts = append(parts,
			"The governing contract is provided below; prefer its item names when a line item is ambiguous.",
			"Also include a 'rationale' field: a short narrative justifying your reading of the amounts and how they relate to the contracted prices.",
		)
	}
	return strings.Join(parts, " ")
}

func buildInvoiceUserPrompt(filename string, terms *domain.ContractTermSet) string {
	var b strings.Builder
	b.WriteString("Document filename: ")
	b.WriteString(filename)
	if terms != nil {
		b.WriteString("\n\nGoverning contract terms:\n")
		b.WriteString("Payment terms: ")
		b.WriteString(terms.PaymentTerms)
		b.WriteString("\nTax rate: ")
		b.WriteString(terms.TaxRate.String())
		b.WriteString("\nContracted items:\n")
		for _, p := range terms.Pricing {
			b.WriteString("- ")
			b.WriteString(p.Item)
			b.WriteString(" @ ")
			b.WriteString(p.UnitPrice.String())
			if p.Unit != "" {
				b.WriteString(" per ")
				b.WriteString(p.Unit)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nExtract the structured invoice data from the attached image.")
	return b.String()
}

func buildContractSystemPrompt() string {
	return strings.Join([]string{
		"You are a vendor contract parser. Return ONLY JSON that matches the JSON Schema provided.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"All money amounts and rates are decimal strings (tax rate as a fraction, e.g. 0.085 for 8.5%).",
		"Extract every per-item price under 'pricing' and every volume discount tier under 'discounts'.",
		"Report your certainty under 'confidence' (0 to 1).",
		"Never output null. If a field is not present, omit it.",
	}, " ")
}

func buildContractUserPrompt(filename string) string {
	var b strings.Builder
	b.WriteString("Document filename: ")
	b.WriteString(filename)
	b.WriteString("\n\nExtract the vendor identity and contract terms from the attached image.")
	return b.String()
}
