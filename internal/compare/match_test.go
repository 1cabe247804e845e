package compare

import (
	"testing"

	"github.com/vendorlens/reconciler/internal/domain"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "Widget A", "Widget A", 1.0},
		{"case and punctuation", "widget-a", "Widget A", 1.0},
		{"containment", "Industrial Solvent 55gal drum", "Industrial Solvent 55gal", 1.0},
		{"disjoint", "Copy paper", "Steel brackets", 0.0},
		{"partial overlap", "black toner cartridge", "toner cartridge refill", 0.5},
		{"empty", "", "Widget A", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMatchPricingTerm(t *testing.T) {
	pricing := []domain.PricingTerm{
		{Item: "Copy paper, letter"},
		{Item: "Toner cartridge, black"},
		{Item: "Hanging folders"},
	}

	t.Run("picks the best scoring term", func(t *testing.T) {
		idx, score := matchPricingTerm("black toner cartridge", pricing)
		if idx != 1 {
			t.Fatalf("idx = %d, want 1", idx)
		}
		if score < similarityFloor {
			t.Errorf("score %v below floor", score)
		}
	})

	t.Run("unrelated description does not match", func(t *testing.T) {
		idx, _ := matchPricingTerm("Rush delivery surcharge", pricing)
		if idx != -1 {
			t.Fatalf("idx = %d, want -1", idx)
		}
	})

	t.Run("empty pricing list", func(t *testing.T) {
		idx, _ := matchPricingTerm("anything", nil)
		if idx != -1 {
			t.Fatalf("idx = %d, want -1", idx)
		}
	})
}

func TestNormalizeTerms(t *testing.T) {
	variants := []string{"Net 30", "net30", "NET-30", " net 30 "}
	for _, v := range variants {
		if got := normalizeTerms(v); got != "net30" {
			t.Errorf("normalizeTerms(%q) = %q, want net30", v, got)
		}
	}
}
