package world

import (
	"errors"
	"fmt"

	"x-rigid/backend/internal/core/domain/entity"
)

// Ошибки регистрации твердых тел
var (
	ErrNotRegistered     = errors.New("entity is not registered as a rigid body")
	ErrAlreadyRegistered = errors.New("entity is already registered as a rigid body")
	ErrSpaceDestroyed    = errors.New("physics space is destroyed")
	ErrInvalidDrag       = errors.New("drag coefficient must be non-negative")
)

// RigidBodyError связывает ошибку с сущностью, для которой она возникла
type RigidBodyError struct {
	Handle entity.Handle
	Name   string
	Err    error
}

func (e *RigidBodyError) Error() string {
	return fmt.Sprintf("rigid body %q (id=%d): %v", e.Name, e.Handle.ID, e.Err)
}

func (e *RigidBodyError) Unwrap() error {
	return e.Err
}
