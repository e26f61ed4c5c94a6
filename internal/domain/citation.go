package domain

// RetrievedSnippet is one passage an assistant run pulled from its retrieval
// backend, keyed by the runtime's own file identifier.
type RetrievedSnippet struct {
	ExternalFileID string
	Text           string
	Score          float64
}

// SourceCitation maps retrieved content back to a document and an inclusive
// page range. Citations are derived on demand and never persisted.
type SourceCitation struct {
	DocumentID     string
	Filename       string
	ExternalFileID string
	PageStart      int
	PageEnd        int
	Score          float64
}
