package domain

// ChatMessage is one turn of the caller-supplied conversation. The core is
// stateless across turns; the caller resends the history on every request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of a question against an ingested document.
type QueryRequest struct {
	Messages        []ChatMessage `json:"messages"`
	SessionID       string        `json:"sessionId"`
	Role            AnswerRole    `json:"role"`
	AllowUngrounded bool          `json:"allowUngrounded,omitempty"`
}

// SourceRef is the citation metadata emitted ahead of a streamed answer.
type SourceRef struct {
	Page       int     `json:"page"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

// InsufficientReason explains why the grounding gate was not met.
type InsufficientReason string

const (
	ReasonNoChunksFound InsufficientReason = "no_chunks_found"
	ReasonLowSimilarity InsufficientReason = "low_similarity"
)

// InsufficientContextResponse is the non-streamed answer shape returned
// when evidence is too weak to ground a generation. This is a successful
// outcome, not an error.
type InsufficientContextResponse struct {
	Answer        string             `json:"answer"`
	Reason        InsufficientReason `json:"reason"`
	TopSimilarity float64            `json:"topSimilarity"`
	Sources       []SourceRef        `json:"sources"`
}

// InsufficientContextAnswer is the fixed answer value of the gated response.
const InsufficientContextAnswer = "INSUFFICIENT_CONTEXT"

// AnswerRole selects the answering persona. Each role maps to a static
// instruction string and a generation temperature.
type AnswerRole string

const (
	RoleStrict     AnswerRole = "strict"
	RoleAdvocate   AnswerRole = "advocate"
	RoleSummary    AnswerRole = "summary"
	RoleCoach      AnswerRole = "coach"
	RoleTranslator AnswerRole = "translator"
	RoleCasual     AnswerRole = "casual"
	RoleNarrative  AnswerRole = "narrative"
)

var roleInstructions = map[AnswerRole]string{
	RoleStrict:     "Answer strictly and factually. State only what the document supports, without speculation or embellishment.",
	RoleAdvocate:   "Answer as an advocate for the document's position. Present its arguments in their strongest form, while staying within what it actually says.",
	RoleSummary:    "Answer with a concise summary. Prefer short sentences and omit secondary detail.",
	RoleCoach:      "Answer as a patient coach. Walk the reader through the material step by step and check understanding along the way.",
	RoleTranslator: "Answer by translating technical language into plain terms a non-specialist can follow, without losing precision.",
	RoleCasual:     "Answer in a relaxed, conversational tone, as if explaining to a colleague over coffee.",
	RoleNarrative:  "Answer in a flowing narrative style, connecting the document's points into a coherent story.",
}

var roleTemperatures = map[AnswerRole]float32{
	RoleStrict:     0.1,
	RoleAdvocate:   0.5,
	RoleSummary:    0.2,
	RoleCoach:      0.5,
	RoleTranslator: 0.3,
	RoleCasual:     0.7,
	RoleNarrative:  0.8,
}

// Valid reports whether the role is one of the known personas.
func (r AnswerRole) Valid() bool {
	_, ok := roleInstructions[r]
	return ok
}

// Instruction returns the persona's instruction text.
func (r AnswerRole) Instruction() string {
	if instr, ok := roleInstructions[r]; ok {
		return instr
	}
	return roleInstructions[RoleStrict]
}

// Temperature returns the generation temperature for the persona. Factual
// roles run cold, expressive roles run warmer.
func (r AnswerRole) Temperature() float32 {
	if t, ok := roleTemperatures[r]; ok {
		return t
	}
	return roleTemperatures[RoleStrict]
}

// ParseRole normalises a caller-supplied role, falling back to strict for
// unknown values.
func ParseRole(s string) AnswerRole {
	r := AnswerRole(s)
	if !r.Valid() {
		return RoleStrict
	}
	return r
}
