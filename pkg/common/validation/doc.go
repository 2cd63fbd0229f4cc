// Package validation provides common validation utilities for configuration
// parameters across the workdist library.
//
// Every helper returns a *errors.ValidationError so callers can match the
// whole family with errors.Is(err, errors.ErrInvalidConfiguration).
package validation
