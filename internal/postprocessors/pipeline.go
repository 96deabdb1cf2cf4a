package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains processors in order, starting with the Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Input is the raw extracted text; output is the chunks ready for
// embedding and persistence. Re-running over identical input and config
// yields identical chunks.
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.Slice(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	p.mu.Unlock()

	p.mu.RLock()
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.RUnlock()

	// Start with a single chunk containing all content
	chunks := []driven.Chunk{
		{
			Content:     content,
			Position:    0,
			StartOffset: 0,
			EndOffset:   len(content),
		},
	}

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// Size is the target characters per chunk
	Size int

	// Overlap is the character overlap between chunks. Must be < Size.
	Overlap int
}

// DefaultChunkConfig returns the documented defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// EstimateChunks predicts how many chunks a text of the given length
// produces. Used by upload validation to reject pathological documents
// before any embedding work happens.
func (c ChunkConfig) EstimateChunks(textLen int) int {
	if textLen <= 0 {
		return 0
	}
	if textLen <= c.Size {
		return 1
	}
	step := c.Size - c.Overlap
	if step <= 0 {
		step = 1
	}
	return (textLen-c.Size+step-1)/step + 1
}

// Chunker splits content into overlapping chunks and recovers exact source
// offsets for each one. The split itself is character-count based, so the
// emitted text may not start exactly at the stepping cursor (content is
// trimmed); offsets are recovered by searching for the chunk text forward
// of the previous chunk's end. If the search misses, the cursor position
// is used as a best-effort start - chunking never fails.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.Size <= 0 {
		config.Size = DefaultChunkConfig().Size
	}
	if config.Overlap < 0 || config.Overlap >= config.Size {
		config.Overlap = config.Size / 5
	}
	return &Chunker{config: config}
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		result = append(result, c.splitContent(chunk.Content, chunk.StartOffset, &position)...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// splitContent splits content into overlapping chunks. Offsets are
// recovered by substring search from a cursor trailing the previous
// chunk's end by the configured overlap, so the shared region stays
// findable; a miss falls back to the cursor itself.
func (c *Chunker) splitContent(content string, baseOffset int, position *int) []driven.Chunk {
	var chunks []driven.Chunk
	start := 0
	cursor := 0

	for start < len(content) {
		end := start + c.config.Size
		if end > len(content) {
			end = len(content)
		}

		text := strings.TrimSpace(content[start:end])
		if text != "" {
			chunkStart := cursor
			if idx := strings.Index(content[cursor:], text); idx >= 0 {
				chunkStart = cursor + idx
			}
			chunkEnd := chunkStart + len(text)
			if chunkEnd > len(content) {
				chunkEnd = len(content)
			}

			chunks = append(chunks, driven.Chunk{
				Content:     text,
				Position:    *position,
				StartOffset: baseOffset + chunkStart,
				EndOffset:   baseOffset + chunkEnd,
			})
			*position++

			cursor = chunkEnd - c.config.Overlap
			if cursor <= chunkStart {
				cursor = chunkStart + 1
			}
		}

		if end >= len(content) {
			break
		}

		// Move start with overlap, ensuring we always advance
		nextStart := end - c.config.Overlap
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}

	return chunks
}

// PageMapper approximates a page number for each chunk from its character
// offset. Pages are not reconstructed from layout, only estimated by
// text-position proportion - a known precision limit, not a bug.
type PageMapper struct {
	totalChars int
	pageCount  int
}

// Verify interface compliance
var _ driven.PostProcessor = (*PageMapper)(nil)

// NewPageMapper creates a page mapper for a document with the given
// extracted text length and page count.
func NewPageMapper(totalChars, pageCount int) *PageMapper {
	if totalChars < 1 {
		totalChars = 1
	}
	if pageCount < 1 {
		pageCount = 1
	}
	return &PageMapper{totalChars: totalChars, pageCount: pageCount}
}

// Process assigns an estimated page to every chunk.
func (m *PageMapper) Process(chunks []driven.Chunk) []driven.Chunk {
	for i := range chunks {
		chunks[i].Page = m.PageFor(chunks[i].StartOffset)
	}
	return chunks
}

// PageFor estimates the 1-based page containing the given offset, clamped
// to [1, pageCount].
func (m *PageMapper) PageFor(offset int) int {
	page := offset*m.pageCount/m.totalChars + 1
	if page < 1 {
		page = 1
	}
	if page > m.pageCount {
		page = m.pageCount
	}
	return page
}

// Name returns the processor name.
func (m *PageMapper) Name() string {
	return "page-mapper"
}

// Order returns 1 - page mapping runs right after chunking.
func (m *PageMapper) Order() int {
	return 1
}
