package postgres

import (
	"errors"
	"testing"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
)

func TestCoerceSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    float64
		wantErr bool
	}{
		{"float64", 0.42, 0.42, false},
		{"bytes", []byte("0.8123"), 0.8123, false},
		{"string", "0.35", 0.35, false},
		{"garbage bytes", []byte("not-a-number"), 0, true},
		{"unexpected type", struct{}{}, 0, true},
		{"nil", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceSimilarity(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, domain.ErrUpstreamFailure) {
					t.Errorf("expected ErrUpstreamFailure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFormatVector(t *testing.T) {
	got := formatVector([]float32{0.5, -1, 2.25})
	want := "[0.5,-1,2.25]"
	if got != want {
		t.Errorf("formatVector = %q, want %q", got, want)
	}

	if got := formatVector(nil); got != "[]" {
		t.Errorf("empty vector = %q, want []", got)
	}
}
