package domain

// ContentKey is the reserved payload field holding document text. Caller
// metadata carrying this key is dropped before merge so the stored content
// always wins.
const ContentKey = "content"

// Document is a transient insert input. ID may be a caller-supplied string or
// number; when absent one is generated. Metadata is an open bag stored
// alongside the reserved content field.
type Document struct {
	ID       any            `json:"id,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is one ranked similarity hit. Metadata excludes the reserved
// content key so text is not duplicated. Doubles as a RAG source entry.
type SearchResult struct {
	ID       any            `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
