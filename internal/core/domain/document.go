package domain

import "fmt"

// Document is the extracted text of a source file.
// It only lives for the duration of one ingestion run.
type Document struct {
	// SourceID identifies the document in point payloads.
	// Defaults to Path when the caller does not supply one.
	SourceID string

	// Path is the file the text was extracted from.
	Path string

	// Content is the full extracted text before chunking.
	Content string
}

// Chunk is the retrieval unit cut from a Document.
// Its identity is (SourceID, Position).
type Chunk struct {
	// ID is the deterministic point ID derived from SourceID and Position.
	ID string

	// SourceID links to the parent Document.
	SourceID string

	// Position is the ordinal position within the document.
	Position int

	// Text is the chunk content.
	Text string
}

// ChunksAndSource is the checkpointed output of the load step.
type ChunksAndSource struct {
	Chunks   []string `json:"chunks"`
	SourceID string   `json:"source_id"`
}

// UpsertResult is the output of a completed ingestion.
type UpsertResult struct {
	Ingested int `json:"ingested"`
}

// PointPayload is the typed payload stored alongside each vector.
type PointPayload struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Point is a persisted vector store record.
type Point struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

// NewPoints zips ids, vectors and payloads into points.
// All three slices must have the same length.
func NewPoints(ids []string, vectors [][]float32, payloads []PointPayload) ([]Point, error) {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return nil, fmt.Errorf("%w: %d ids, %d vectors, %d payloads",
			ErrInvalidInput, len(ids), len(vectors), len(payloads))
	}
	points := make([]Point, len(ids))
	for i := range ids {
		points[i] = Point{
			ID:      ids[i],
			Vector:  vectors[i],
			Payload: payloads[i],
		}
	}
	return points, nil
}
