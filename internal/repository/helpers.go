package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound turns sql.ErrNoRows into a nil result with no error, so
// Find* methods report a missing row as (nil, nil).
//
//	var child model.Child
//	err := r.db.GetContext(ctx, &child, query, id)
//	return HandleNotFound(&child, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
