package gen

import (
	"github.com/google/uuid"
)

// IDGenerator produces request identifiers.
type IDGenerator func() uuid.UUID

func RequestID() IDGenerator {
	return uuid.New
}

// Next returns the next identifier in its canonical string form.
func (g IDGenerator) Next() string {
	if g == nil {
		return uuid.Nil.String()
	}

	return g().String()
}
