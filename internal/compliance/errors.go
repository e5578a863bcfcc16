package compliance

import (
	"errors"
	"fmt"

	"github.com/dshills/watchgraph/internal/schema"
)

// ErrInvalidStatus is matched by every *InvalidStatusError via errors.Is.
var ErrInvalidStatus = errors.New("invalid status")

// InvalidStatusError reports a mapping whose status is outside the four
// recognised values. The offending record is never counted.
type InvalidStatusError struct {
	MappingID string
	SystemID  string
	Status    schema.Status
}

func (e *InvalidStatusError) Error() string {
	if e.SystemID != "" {
		return fmt.Sprintf("mapping %q (system %q): invalid status %q", e.MappingID, e.SystemID, e.Status)
	}
	return fmt.Sprintf("mapping %q: invalid status %q", e.MappingID, e.Status)
}

// Is lets errors.Is(err, ErrInvalidStatus) match.
func (e *InvalidStatusError) Is(target error) bool { return target == ErrInvalidStatus }
