package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendorlens/reconciler/internal/common"
	"github.com/vendorlens/reconciler/internal/extract"
)

var _ extract.Analyzer = (*Client)(nil)

// AnalyzeInvoice implements extract.Analyzer over a single vision
// chat/completions round trip. When the request carries contract terms the
// same call also produces the rationale narrative; there is no second call.
func (c *Client) AnalyzeInvoice(ctx context.Context, req extract.Request) (extract.InvoiceExtraction, error) {
	rid := uuid.New().String()
	start := time.Now()

	withRationale := req.Terms != nil
	schema := extract.BuildInvoiceJSONSchema(withRationale)
	sys := buildInvoiceSystemPrompt(req.Terms)
	user := buildInvoiceUserPrompt(req.Filename, req.Terms)

	c.log.Info("extract.invoice.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"filename", req.Filename,
		"image_bytes", len(req.Image),
		"with_terms", withRationale,
	)

	content, err := c.complete(ctx, rid, schema, sys, user, req)
	if err != nil {
		return extract.InvoiceExtraction{}, err
	}

	cleaned, err := c.sanitizeAndValidate(rid, schema, content, extract.NormalizeInvoiceJSON)
	if err != nil {
		return extract.InvoiceExtraction{}, err
	}

	inv, rationale, err := extract.DecodeInvoice(cleaned)
	if err != nil {
		c.log.Error("extract.invoice.decode_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.InvoiceExtraction{}, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}

	c.log.Info("extract.invoice.ok",
		"req_id", rid,
		"invoice_number", inv.InvoiceNumber,
		"vendor", inv.VendorName,
		"total", inv.TotalAmount.String(),
		"lines", len(inv.LineItems),
		"confidence", inv.ExtractionConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return extract.InvoiceExtraction{
		Invoice:   inv,
		Rationale: rationale,
		Model:     c.cfg.Model,
		Raw:       cleaned,
	}, nil
}

// AnalyzeContract extracts vendor identity and a contract term set from a
// contract document image.
func (c *Client) AnalyzeContract(ctx context.Context, req extract.Request) (extract.ContractExtraction, error) {
	rid := uuid.New().String()
	start := time.Now()

	schema := extract.BuildContractJSONSchema()
	sys := buildContractSystemPrompt()
	user := buildContractUserPrompt(req.Filename)

	c.log.Info("extract.contract.start",
		"req_id", rid, "model", c.cfg.Model, "filename", req.Filename,
	)

	content, err := c.complete(ctx, rid, schema, sys, user, req)
	if err != nil {
		return extract.ContractExtraction{}, err
	}

	cleaned, err := c.sanitizeAndValidate(rid, schema, content, extract.NormalizeContractJSON)
	if err != nil {
		return extract.ContractExtraction{}, err
	}

	out, err := extract.DecodeContract(cleaned)
	if err != nil {
		c.log.Error("extract.contract.decode_failed", "req_id", rid, "error", err)
		return extract.ContractExtraction{}, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}
	out.Model = c.cfg.Model

	c.log.Info("extract.contract.ok",
		"req_id", rid,
		"vendor", out.Vendor.Name,
		"pricing_terms", len(out.Terms.Pricing),
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// complete runs one chat/completions call with the document image attached and
// returns the raw content string of the first choice.
func (c *Client) complete(ctx context.Context, rid string, schema map[string]any, sys, user string, req extract.Request) (string, error) {
	mimeType := req.ContentType
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": user + "\n\nReturn ONLY JSON that matches the provided schema."},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("extract.http_error", "req_id", rid, "error", err)
		return "", fmt.Errorf("%w: %v", common.ErrExtractionService, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("extract.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", fmt.Errorf("%w: decode response envelope: %v", common.ErrExtractionParse, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("extract.no_choices", "req_id", rid, "raw", string(raw))
		return "", fmt.Errorf("%w: no choices in response", common.ErrExtractionParse)
	}
	return cc.Choices[0].Message.Content, nil
}

// sanitizeAndValidate strips formatting wrappers, normalizes the payload and
// validates it against the schema. Any failure here is a parse error; the
// prompt or model is at fault and a retry will likely repeat it.
func (c *Client) sanitizeAndValidate(rid string, schema map[string]any, content string, normalize func([]byte) ([]byte, []string, error)) ([]byte, error) {
	stripped := extract.StripFormattingWrappers(content)

	cleaned, dropped, err := normalize([]byte(stripped))
	if err != nil {
		c.log.Error("extract.sanitize_failed", "req_id", rid, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}
	if len(dropped) > 0 {
		c.log.Warn("extract.sanitize_applied", "req_id", rid, "dropped", dropped)
	}

	if err := extract.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.log.Error("extract.schema_validation_failed", "req_id", rid, "error", err, "content", string(cleaned))
		return nil, fmt.Errorf("%w: %v", common.ErrExtractionParse, err)
	}
	return cleaned, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if cerr := Body.Close(); cerr != nil {
			c.log.Warn("provider response body close error", "error", cerr)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
