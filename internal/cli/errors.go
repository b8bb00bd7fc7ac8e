package cli

import (
	"errors"
	"fmt"

	"storytree/internal/model"
)

var errDoctorIssuesFound = errors.New("doctor found errors")

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

func errNoCard(pos model.Position) error {
	return errNotFound("card", pos.String())
}
