package articles

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Fetcher pulls new articles from one source. Implementations are
// deployment-specific and bound through fx; the fetch job runs without one
// and simply reports that no fetcher is configured.
type Fetcher interface {
	Fetch(ctx context.Context, source *Source) ([]*Article, error)
}

// ContentHash returns the canonical hash used for duplicate suppression on
// ingest.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
