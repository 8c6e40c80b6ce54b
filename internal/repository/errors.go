package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a document does not exist in the caller's
// partition. Handlers translate it into a 404.
var ErrNotFound = errors.New("not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
