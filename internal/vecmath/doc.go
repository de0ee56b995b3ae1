// Package vecmath holds the vector arithmetic shared by the local vector stores:
// cosine similarity, top-k ranking, and the BLOB encoding used to persist
// embeddings in SQLite.
package vecmath
