package postprocessors

import (
	"strings"
	"testing"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

func TestChunker_SmallContent(t *testing.T) {
	pipeline := NewPipeline()
	pipeline.Add(NewChunker(ChunkConfig{Size: 1000, Overlap: 200}))

	chunks := pipeline.Process("short content")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short content" {
		t.Errorf("unexpected content: %q", chunks[0].Content)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len("short content") {
		t.Errorf("unexpected offsets: [%d, %d)", chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestChunker_OverlappingChunks(t *testing.T) {
	content := strings.Repeat("abcdefghij", 100) // 1000 chars

	pipeline := NewPipeline()
	pipeline.Add(NewChunker(ChunkConfig{Size: 300, Overlap: 50}))
	result := pipeline.Process(content)

	if len(result) < 3 {
		t.Fatalf("expected multiple chunks, got %d", len(result))
	}

	for i, chunk := range result {
		if chunk.Position != i {
			t.Errorf("chunk %d: position = %d", i, chunk.Position)
		}
		if chunk.StartOffset >= chunk.EndOffset {
			t.Errorf("chunk %d: empty span [%d, %d)", i, chunk.StartOffset, chunk.EndOffset)
		}
	}
}

func TestChunker_OffsetInvariants(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteByte(byte('a' + i%26))
		sb.WriteString(" talks about something mildly interesting. ")
	}
	content := sb.String()

	pipeline := NewPipeline()
	pipeline.Add(NewChunker(ChunkConfig{Size: 500, Overlap: 100}))
	chunks := pipeline.Process(content)

	prevStart := -1
	for i, chunk := range chunks {
		if chunk.StartOffset < prevStart {
			t.Errorf("chunk %d: start %d before previous start %d", i, chunk.StartOffset, prevStart)
		}
		prevStart = chunk.StartOffset

		// Recovered offsets must point at the chunk's own text.
		got := content[chunk.StartOffset:chunk.EndOffset]
		if got != chunk.Content {
			t.Errorf("chunk %d: offsets do not match content", i)
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	content := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	run := func() []driven.Chunk {
		pipeline := NewPipeline()
		pipeline.Add(NewChunker(ChunkConfig{Size: 400, Overlap: 80}))
		return pipeline.Process(content)
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkConfig_EstimateChunks(t *testing.T) {
	cfg := ChunkConfig{Size: 1000, Overlap: 200}

	tests := []struct {
		textLen int
		want    int
	}{
		{0, 0},
		{500, 1},
		{1000, 1},
		{1001, 2},
		{1800, 2},
		{1801, 3},
	}
	for _, tt := range tests {
		if got := cfg.EstimateChunks(tt.textLen); got != tt.want {
			t.Errorf("EstimateChunks(%d) = %d, want %d", tt.textLen, got, tt.want)
		}
	}
}

func TestPageMapper_Bounds(t *testing.T) {
	mapper := NewPageMapper(1000, 3)

	tests := []struct {
		offset int
		want   int
	}{
		{0, 1},
		{333, 1},
		{334, 2},
		{500, 2},
		{999, 3},
		{5000, 3}, // past the end, clamped
	}
	for _, tt := range tests {
		if got := mapper.PageFor(tt.offset); got != tt.want {
			t.Errorf("PageFor(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestPageMapper_DegenerateDocument(t *testing.T) {
	// Zero chars and zero pages must not divide by zero.
	mapper := NewPageMapper(0, 0)
	if got := mapper.PageFor(0); got != 1 {
		t.Errorf("PageFor(0) = %d, want 1", got)
	}
}

func TestPipeline_PagesAssigned(t *testing.T) {
	content := strings.Repeat("x", 100) + " " + strings.Repeat("y", 100)

	pipeline := NewPipeline()
	pipeline.Add(NewPageMapper(len(content), 4))
	pipeline.Add(NewChunker(ChunkConfig{Size: 50, Overlap: 10}))

	chunks := pipeline.Process(content)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if chunk.Page < 1 || chunk.Page > 4 {
			t.Errorf("chunk %d: page %d out of bounds", i, chunk.Page)
		}
	}
	if chunks[0].Page != 1 {
		t.Errorf("first chunk page = %d, want 1", chunks[0].Page)
	}
}
