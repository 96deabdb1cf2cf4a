package driven

// Chunk is the pipeline's working fragment representation. Offsets are
// byte positions into the full extracted text, end exclusive.
type Chunk struct {
	Content     string
	Position    int
	StartOffset int
	EndOffset   int
	Page        int
}

// PostProcessor applies one stage of the ingestion pipeline.
// Processors form a pipeline: Chunker -> PageMapper -> etc.
type PostProcessor interface {
	// Process transforms the chunks from the previous stage. The first
	// processor receives a single chunk holding the full content.
	Process(chunks []Chunk) []Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// PostProcessorPipeline chains processors over extracted document text.
type PostProcessorPipeline interface {
	// Process runs the full pipeline over the raw extracted text.
	Process(content string) []Chunk

	// Add adds a processor to the pipeline.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
