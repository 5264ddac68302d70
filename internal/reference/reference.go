// Package reference generates human-legible transaction references of the
// form TXN-20261019-130201-000042-9F3A61C0.
//
// References are unique with high probability only: a UTC timestamp with
// second precision, a per-process counter and 32 random bits. The
// transaction log enforces uniqueness on insert.
package reference

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const Prefix = "TXN"

type Generator struct {
	now     func() time.Time
	counter atomic.Uint64
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// WithClock is used by tests to pin the timestamp part.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

func (g *Generator) Next() string {
	seq := g.counter.Add(1) % 1_000_000
	random := uuid.New()
	suffix := strings.ToUpper(strings.ReplaceAll(random.String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%06d-%s", Prefix, g.now().UTC().Format("20060102-150405"), seq, suffix)
}
