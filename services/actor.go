package services

import (
	"civicguardian-be/apperrors"
	"civicguardian-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated identity performing an operation. The zero
// value is an anonymous caller.
type Actor struct {
	ID         primitive.ObjectID
	Role       models.Role
	Department *string
}

func (a Actor) Authenticated() bool { return !a.ID.IsZero() }

func (a Actor) requireAuthenticated() error {
	if !a.Authenticated() {
		return apperrors.Unauthorized("authentication required")
	}
	return nil
}

func (a Actor) requireTriage() error {
	if err := a.requireAuthenticated(); err != nil {
		return err
	}
	if !a.Role.CanTriage() {
		return apperrors.Forbidden("access denied: authority or admin role required")
	}
	return nil
}
