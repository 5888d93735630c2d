package skeleton

import (
	"fmt"
)

// NumericDomainError reports a degenerate value that was replaced by a
// documented fallback. It never aborts processing of the whole skeleton.
type NumericDomainError struct {
	Joint    int
	Name     string
	Reason   string
	Fallback string
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("joint %d (%q): %s, using %s", e.Joint, e.Name, e.Reason, e.Fallback)
}

// HierarchyError reports parent indices that do not form a forest.
type HierarchyError struct {
	Joint  int
	Parent int32
	Reason string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("joint %d parent %d: %s", e.Joint, e.Parent, e.Reason)
}
