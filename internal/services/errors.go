package services

import (
	"database/sql"
	"errors"
	"time"

	"beanstore/internal/apperr"
)

// notFound turns a missing row into a NotFound error with msg and passes
// anything else through.
func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(msg)
	}
	return err
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
