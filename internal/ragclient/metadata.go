package ragclient

import (
	"encoding/json"
	"strings"
)

// Source identifies one retrieved chunk by page and kind ("text" or "image").
type Source struct {
	Page int    `json:"page"`
	Type string `json:"type"`
}

// Metadata is the structured record the backend appends to the answer
// stream after the delimiter. All fields are optional on the wire; a
// missing or unparsable trailer simply means no metadata for that turn.
type Metadata struct {
	Sources                []Source `json:"sources"`
	NumImages              int      `json:"num_images"`
	NumTextChunks          int      `json:"num_text_chunks"`
	TopSimilarity          float64  `json:"top_similarity"`
	Confidence             float64  `json:"confidence"`
	AnswerSourceSimilarity float64  `json:"answer_source_similarity"`
	IsHallucination        bool     `json:"is_hallucination"`
	SourcePages            []int    `json:"source_pages"`
	AgentType              string   `json:"agent_type"`
	LatencyMs              float64  `json:"latency_ms"`
}

// ParseTrailer decodes the metadata JSON that follows the delimiter.
// Failure is not an error condition: the answer stands on its own.
func ParseTrailer(tail string) (*Metadata, bool) {
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return nil, false
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(tail), &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

// LogRecord is one persisted analytics entry from the backend's query log.
// Fetched best-effort after a session completes; richer than the inline
// trailer because the backend fills it after full evaluation.
type LogRecord struct {
	ID                     int64   `json:"id"`
	Question               string  `json:"question"`
	Answer                 string  `json:"answer"`
	TopSimilarity          float64 `json:"top_similarity"`
	Confidence             float64 `json:"confidence"`
	AnswerSourceSimilarity float64 `json:"answer_source_similarity"`
	IsHallucination        bool    `json:"is_hallucination"`
	Rejected               bool    `json:"rejected"`
	SourcePages            []int   `json:"source_pages"`
	LatencyMs              float64 `json:"latency_ms"`
	CreatedAt              string  `json:"created_at"`
}
