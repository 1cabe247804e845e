package extract

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the provider as a structured output constraint
// and also use it locally to validate the response.
// withRationale adds the narrative field requested when contract terms are
// supplied alongside the document.
func BuildInvoiceJSONSchema(withRationale bool) map[string]any {
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "minLength": 1},
			"quantity":    decimalProp(),
			"unit_price":  decimalProp(),
			"total_price": decimalProp(),
			"unit":        map[string]any{"type": "string"},
		},
		"required": []string{"description", "quantity", "unit_price", "total_price"},
	}

	props := map[string]any{
		"invoice_number": map[string]any{"type": "string", "minLength": 1},
		"vendor_name":    map[string]any{"type": "string", "minLength": 1},
		"invoice_date":   map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"due_date":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"payment_terms":  map[string]any{"type": "string"},
		"subtotal":       decimalProp(),
		"tax_amount":     decimalProp(),
		"total_amount":   decimalProp(),
		"line_items":     map[string]any{"type": "array", "items": lineItem},
		"confidence":     map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}
	required := []string{"invoice_number", "vendor_name", "invoice_date", "subtotal", "tax_amount", "total_amount", "line_items", "confidence"}

	if withRationale {
		props["rationale"] = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// BuildContractJSONSchema constrains contract analysis output: vendor identity
// plus the term set fields the comparator consumes.
func BuildContractJSONSchema() map[string]any {
	pricingTerm := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"item":          map[string]any{"type": "string", "minLength": 1},
			"unit_price":    decimalProp(),
			"unit":          map[string]any{"type": "string"},
			"min_order_qty": decimalProp(),
			"max_order_qty": decimalProp(),
		},
		"required": []string{"item", "unit_price"},
	}
	discountTerm := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"threshold_amount": decimalProp(),
			"discount_pct":     decimalProp(),
			"conditions":       map[string]any{"type": "string"},
		},
		"required": []string{"threshold_amount", "discount_pct"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"vendor": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"name":          map[string]any{"type": "string", "minLength": 1},
					"address":       map[string]any{"type": "string"},
					"contact_email": map[string]any{"type": "string"},
				},
				"required": []string{"name"},
			},
			"payment_terms":   map[string]any{"type": "string"},
			"pricing":         map[string]any{"type": "array", "items": pricingTerm},
			"discounts":       map[string]any{"type": "array", "items": discountTerm},
			"tax_rate":        decimalProp(),
			"effective_date":  map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"expiration_date": map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"confidence":      map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"vendor", "payment_terms", "pricing", "tax_rate", "effective_date", "confidence"},
	}
}

func decimalProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^-?\d+(\.\d{1,4})?$`,
	}
}
