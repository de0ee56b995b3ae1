package domain

// DefaultTopK is the number of contexts retrieved when the caller does not say.
const DefaultTopK = 5

// IngestRequest is the payload of the ingest_pdf trigger.
type IngestRequest struct {
	// PDFPath is the file to ingest (required).
	PDFPath string `json:"pdf_path"`

	// SourceID overrides the payload source. Defaults to PDFPath.
	SourceID string `json:"source_id,omitempty"`

	// RunID identifies the workflow run. Re-using a RunID resumes that run.
	RunID string `json:"run_id,omitempty"`
}

// QueryRequest is the payload of the query_pdf trigger.
type QueryRequest struct {
	// Question is the user question (required).
	Question string `json:"question"`

	// TopK is the number of contexts to retrieve. Zero means DefaultTopK.
	TopK int `json:"top_k,omitempty"`

	// RunID identifies the workflow run. Re-using a RunID resumes that run.
	RunID string `json:"run_id,omitempty"`
}
