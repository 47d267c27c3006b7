// Package ids mints the identifiers persisted across the auth tables.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var source = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
}

// New returns a ULID. Users, organizations, members, sessions, invitations
// and audit rows all draw from this keyspace; monotonic entropy keeps ids
// minted within the same millisecond ordered, so audit rows sort by id.
func New() string {
	source.Lock()
	defer source.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), source.entropy).String()
}
