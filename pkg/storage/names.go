package storage

import (
	mathrand "math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewObjectName returns a collision-resistant, sortable file name that keeps the
// lower-cased extension of the original upload.
func NewObjectName(original string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	entropyMu.Unlock()

	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return id + ext
}
