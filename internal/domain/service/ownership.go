package service

import (
	domainerrors "usermgmt/internal/domain/errors"
)

// AuthorizeOwner enforces that the authenticated subject acts only on its own account.
// It must run before the target record is looked up so that a rejected caller
// cannot tell whether the target exists.
func AuthorizeOwner(subjectID, resourceID string) error {
	if subjectID == "" {
		return domainerrors.ErrUnauthenticated
	}
	if subjectID != resourceID {
		return domainerrors.ErrForbidden
	}

	return nil
}
