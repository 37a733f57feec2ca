// Package ownership holds the single access check applied to every
// user-owned record. Callers translate ErrNotOwner into their own
// not-found error so foreign records never reveal their existence.
package ownership

import (
	"errors"
	"strings"
)

// ErrNotOwner is returned when the requester does not own the record.
var ErrNotOwner = errors.New("requester does not own this record")

// Require checks that the requester is the record owner.
func Require(ownerID, requesterID string) error {
	ownerID = strings.TrimSpace(ownerID)
	requesterID = strings.TrimSpace(requesterID)
	if ownerID == "" || requesterID == "" || ownerID != requesterID {
		return ErrNotOwner
	}
	return nil
}
