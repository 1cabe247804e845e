package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFormattingWrappers removes incidental markdown fencing the model wraps
// around its JSON (```json ... ```), plus leading prose up to the first brace.
func StripFormattingWrappers(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// Some models prefix a sentence before the object.
	if !strings.HasPrefix(s, "{") {
		if idx := strings.Index(s, "{"); idx > 0 {
			s = s[idx:]
		}
	}
	return s
}

// invoiceMoneyKeys are the top-level fields coerced to decimal strings.
var invoiceMoneyKeys = []string{"subtotal", "tax_amount", "total_amount"}

// lineItemMoneyKeys are the per-line fields coerced to decimal strings.
var lineItemMoneyKeys = []string{"quantity", "unit_price", "total_price"}

// NormalizeInvoiceJSON
// - Coerces numeric money fields to strings (schema declares decimals as strings)
// - Drops null/empty optionals
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeInvoiceJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)

	for _, k := range invoiceMoneyKeys {
		coerceMoney(m, k, &dropped)
	}

	if items, ok := m["line_items"].([]any); ok {
		for _, it := range items {
			li, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range lineItemMoneyKeys {
				coerceMoney(li, k, &dropped)
			}
			dropUnknown(li, map[string]struct{}{
				"description": {}, "quantity": {}, "unit_price": {}, "total_price": {}, "unit": {},
			}, &dropped)
		}
	}

	allowed := map[string]struct{}{
		"invoice_number": {}, "vendor_name": {}, "invoice_date": {}, "due_date": {},
		"payment_terms": {}, "subtotal": {}, "tax_amount": {}, "total_amount": {},
		"line_items": {}, "confidence": {}, "rationale": {},
	}
	dropUnknown(m, allowed, &dropped)
	trimStrings(m, []string{"invoice_number", "vendor_name", "invoice_date", "due_date", "payment_terms"}, &dropped)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

// NormalizeContractJSON applies the same cleanup to contract analysis output.
func NormalizeContractJSON(raw []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	coerceMoney(m, "tax_rate", &dropped)

	if pricing, ok := m["pricing"].([]any); ok {
		for _, it := range pricing {
			pt, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range []string{"unit_price", "min_order_qty", "max_order_qty"} {
				coerceMoney(pt, k, &dropped)
			}
		}
	}
	if discounts, ok := m["discounts"].([]any); ok {
		for _, it := range discounts {
			dt, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range []string{"threshold_amount", "discount_pct"} {
				coerceMoney(dt, k, &dropped)
			}
		}
	}

	allowed := map[string]struct{}{
		"vendor": {}, "payment_terms": {}, "pricing": {}, "discounts": {},
		"tax_rate": {}, "effective_date": {}, "expiration_date": {}, "confidence": {},
	}
	dropUnknown(m, allowed, &dropped)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	return out, dropped, nil
}

func coerceMoney(m map[string]any, k string, dropped *[]string) {
	v, ok := m[k]
	if !ok {
		return
	}
	switch t := v.(type) {
	case float64:
		m[k] = fmt.Sprintf("%.2f", t)
	case int:
		m[k] = fmt.Sprintf("%d", t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			delete(m, k)
			*dropped = append(*dropped, k+"(empty)")
		} else {
			// strip currency prefixes and thousands separators
			s = strings.TrimLeft(s, "$€£ ")
			m[k] = strings.ReplaceAll(s, ",", "")
		}
	case nil:
		delete(m, k)
		*dropped = append(*dropped, k+"(null)")
	default:
		delete(m, k)
		*dropped = append(*dropped, k+"(type)")
	}
}

func dropUnknown(m map[string]any, allowed map[string]struct{}, dropped *[]string) {
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			*dropped = append(*dropped, k+"(unknown)")
		}
	}
}

func trimStrings(m map[string]any, keys []string, dropped *[]string) {
	for _, k := range keys {
		if v, ok := m[k].(string); ok {
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				*dropped = append(*dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}
}
