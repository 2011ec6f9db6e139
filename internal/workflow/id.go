package workflow

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Monotonic ULID generation for Execution IDs, lifted directly from the
// teacher's internal/storage/ulid.go: a lexically-sortable, time-ordered
// identifier is more useful than a random UUID for execution records a
// host will list and page through in start order.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func generateExecutionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
