package errx

import (
	"errors"

	"gorm.io/gorm"
)

// WrapDB maps gorm errors to the unified Error type. Missing rows become
// NotFound; everything else is a Database failure that aborts the turn.
func WrapDB(err error, what string) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(err, what)
	}

	return Database(err)
}
