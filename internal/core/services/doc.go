// Package services implements the driving port interfaces.
//
// The ingest_pdf and query_pdf workflows run on Engine, which memoises each
// named step per run so that a re-invoked run skips the steps that already
// completed. Services depend only on driven ports; adapters are injected at
// construction.
//
// Services are pure Go with no CGO or external dependencies beyond
// golang.org/x/time/rate and github.com/google/uuid.
package services
