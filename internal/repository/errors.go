package repository

import (
	"errors"

	"github.com/lib/pq"
)

var ErrDuplicate = errors.New("repository: duplicate key")

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
