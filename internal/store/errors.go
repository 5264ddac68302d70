package store

import (
	"database/sql"
	"errors"

	"openvault/internal/models"
)

// notFound turns sql.ErrNoRows into models.ErrNotFound and leaves other
// errors untouched.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
