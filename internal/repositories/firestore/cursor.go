package firestore

import (
	"errors"

	"github.com/instrugate/api/internal/domain"
	"github.com/instrugate/api/internal/platform/pagination"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var errBadCursor = errors.New("firestore: malformed page token")

func pageSize(p domain.Pagination) int {
	return pagination.Clamp(p.PageSize, pagination.Options{
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	})
}

// encodeCursor wraps the last document ID of a page into an opaque token.
func encodeCursor(id string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{id}})
	if err != nil {
		return ""
	}
	return token
}

func decodeCursor(token string) (string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return "", errBadCursor
	}
	if len(cursor.StartAfter) == 0 {
		return "", nil
	}
	id, ok := cursor.StartAfter[0].(string)
	if !ok || id == "" {
		return "", errBadCursor
	}
	return id, nil
}
