package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/bid-reconciler/internal/reconcile"
)

var (
	// ErrBoqNotFound is returned when a tender has no master BOQ
	ErrBoqNotFound = fmt.Errorf("master BOQ %w", reconcile.ErrNotFound)

	// ErrSubmissionNotFound is returned when a bidder has no live submission
	ErrSubmissionNotFound = fmt.Errorf("submission %w", reconcile.ErrNotFound)

	// ErrInvalidBoq is returned when a BOQ upload is malformed
	ErrInvalidBoq = errors.New("invalid master BOQ")

	// ErrInvalidRequest is returned when a run is started without identifiers
	ErrInvalidRequest = errors.New("invalid request")
)
