package schema

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

type fakeIndex struct {
	matches  []Match
	err      error
	lastTopK int
	upserted []Vector
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int) ([]Match, error) {
	f.lastTopK = topK
	return f.matches, f.err
}

func (f *fakeIndex) Upsert(_ context.Context, vectors []Vector) error {
	f.upserted = append(f.upserted, vectors...)
	return f.err
}

func TestTopK(t *testing.T) {
	index := &fakeIndex{
		matches: []Match{
			{ID: "orders.total", Score: 0.91, Metadata: map[string]string{
				"table": "orders", "column": "total", "data_type": "numeric", "description": "Order total in INR",
			}},
			{ID: "orders.placed_at", Score: 0.77, Metadata: map[string]string{
				"table": "orders", "column": "placed_at", "data_type": "timestamptz", "description": "When the order was placed",
			}},
		},
	}
	finder := NewFinder(&fakeEmbedder{vec: []float32{0.1, 0.2}}, index)

	items, err := finder.TopK(context.Background(), "monthly revenue", 2)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].Table != "orders" || items[0].Column != "total" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[0].Similarity != 0.91 {
		t.Errorf("Similarity = %v, want 0.91", items[0].Similarity)
	}
	if index.lastTopK != 2 {
		t.Errorf("topK passed to index = %d, want 2", index.lastTopK)
	}
}

func TestTopK_DefaultsK(t *testing.T) {
	index := &fakeIndex{}
	finder := NewFinder(&fakeEmbedder{vec: []float32{0.1}}, index)

	if _, err := finder.TopK(context.Background(), "q", 0); err != nil {
		t.Fatal(err)
	}
	if index.lastTopK != 5 {
		t.Errorf("topK = %d, want default 5", index.lastTopK)
	}
}

func TestTopK_EmbedError(t *testing.T) {
	finder := NewFinder(&fakeEmbedder{err: errors.New("provider down")}, &fakeIndex{})

	if _, err := finder.TopK(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}
