package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewKey returns a ULID string. Keys generated later sort after earlier
// ones, including within the same millisecond.
func NewKey() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func KeyTime(key string) (time.Time, error) {
	id, err := ulid.Parse(key)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}
