package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation     = "23505"
	codeExclusionViolation  = "23P01"
	codeCheckViolation      = "23514"
	codeForeignKeyViolation = "23503"
)

// ConstraintViolation returns the postgres error code and constraint name of
// an integrity violation, or ok=false for any other error.
func ConstraintViolation(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation, codeExclusionViolation, codeCheckViolation, codeForeignKeyViolation:
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	code, _, ok := ConstraintViolation(err)
	return ok && code == codeUniqueViolation
}

// IsExclusionViolation reports an exclusion constraint error.
func IsExclusionViolation(err error) bool {
	code, _, ok := ConstraintViolation(err)
	return ok && code == codeExclusionViolation
}

// IsForeignKeyViolation reports a write that would orphan or reference a missing row.
func IsForeignKeyViolation(err error) bool {
	code, _, ok := ConstraintViolation(err)
	return ok && code == codeForeignKeyViolation
}
