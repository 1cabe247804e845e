package extract

import (
	"context"
	"encoding/json"

	"github.com/vendorlens/reconciler/internal/domain"
)

// Request carries one document image into the analysis provider.
// Terms, when set, biases invoice extraction toward the contracted fields and
// asks the model to justify its reading in the same round trip.
type Request struct {
	Image       []byte
	Filename    string
	ContentType string
	Terms       *domain.ContractTermSet
}

// InvoiceExtraction is the result of analyzing an invoice document.
type InvoiceExtraction struct {
	Invoice   domain.ExtractedInvoice
	Rationale string
	Model     string
	Raw       json.RawMessage
}

// VendorData is the vendor identity read off a contract document.
type VendorData struct {
	Name         string `json:"name"`
	Address      string `json:"address,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// ContractExtraction is the result of analyzing a contract document.
type ContractExtraction struct {
	Vendor     VendorData
	Terms      domain.ContractTermSet
	Confidence float64
	Model      string
	Raw        json.RawMessage
}

// Analyzer is the interface the reconciliation pipeline depends on.
// Implementations always return a complete structure with an explicit
// confidence, or fail; partial objects are never returned.
type Analyzer interface {
	AnalyzeInvoice(ctx context.Context, req Request) (InvoiceExtraction, error)
	AnalyzeContract(ctx context.Context, req Request) (ContractExtraction, error)
}
