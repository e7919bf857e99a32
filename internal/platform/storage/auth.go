package storage

import (
	"errors"

	"github.com/instrugate/api/internal/platform/auth"
)

// ErrPermissionDenied is returned when the caller lacks permission to access the asset.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeDownload validates whether the provided identity may access the
// asset owned by ownerID. Catalog images are served anonymously; private
// assets are limited to their owner, proposal engineers, and admins.
func AuthorizeDownload(identity *auth.Identity, ownerID string, allowAnonymous bool) error {
	if allowAnonymous {
		return nil
	}
	if identity == nil {
		return ErrPermissionDenied
	}
	if ownerID != "" && identity.UID == ownerID {
		return nil
	}
	if identity.HasAnyRole(auth.RoleEngineer, auth.RoleAdmin) {
		return nil
	}
	return ErrPermissionDenied
}
