package models

// EvidenceChunk is a read-only span of indexed document text returned by the
// retrieval index.
type EvidenceChunk struct {
	Text       string                 `json:"text"`
	DocumentID string                 `json:"documentId"`
	ChunkID    string                 `json:"chunkId"`
	PageNumber *int                   `json:"pageNumber,omitempty"`
	Score      float64                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// SourceName returns the document name recorded in the chunk metadata.
func (c EvidenceChunk) SourceName() string {
	if name, ok := c.Metadata["source"].(string); ok && name != "" {
		return name
	}
	return "Unknown"
}

type Citation struct {
	DocumentID     string  `json:"documentId"`
	DocumentName   string  `json:"documentName"`
	ChunkID        string  `json:"chunkId"`
	PageNumber     *int    `json:"pageNumber,omitempty"`
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevanceScore"`
}
