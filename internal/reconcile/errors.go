package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the parent of all lookup failures in the pipeline
	ErrNotFound = errors.New("not found")

	// ErrItemNotFound is returned when a matched item ID is unknown
	ErrItemNotFound = fmt.Errorf("matched item %w", ErrNotFound)

	// ErrBoqItemNotFound is returned when a master BOQ item ID is unknown
	ErrBoqItemNotFound = fmt.Errorf("master BOQ item %w", ErrNotFound)

	// ErrInvalidMapping is returned when matching is attempted with a blocking mapping
	ErrInvalidMapping = errors.New("column mapping is invalid")
)
