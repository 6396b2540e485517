package domain

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out process-unique request ids of the form
// "<prefix>-<boot>-<counter>". It is safe for concurrent use.
type IDGenerator struct {
	prefix  string
	boot    string
	counter atomic.Uint64
}

// NewIDGenerator creates a generator whose boot component is a fresh uuid.
func NewIDGenerator(prefix string) *IDGenerator {
	boot := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &IDGenerator{prefix: prefix, boot: boot}
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	n := g.counter.Add(1)
	if g.prefix == "" {
		return fmt.Sprintf("%s-%d", g.boot, n)
	}
	return fmt.Sprintf("%s-%s-%d", g.prefix, g.boot, n)
}
