package edit

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator produces candidate ids for new topics and styles. Candidates
// that collide with an id already in the document are discarded.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator yields random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// SequenceGenerator yields Prefix1, Prefix2, ... for reproducible output.
type SequenceGenerator struct {
	Prefix string
	next   int
}

func (g *SequenceGenerator) NewID() string {
	g.next++
	return fmt.Sprintf("%s%d", g.Prefix, g.next)
}
