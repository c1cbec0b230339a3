// Package validator turns per-field problems in request input into a 422.
package validator

import "github.com/artemis-health/artemis/internal/xerrors"

type Validator interface {
	// Validate returns a message per invalid field, or nil when the input is
	// usable.
	Validate() map[string]string
}

func Validate(v Validator) *xerrors.Error {
	if fields := v.Validate(); len(fields) > 0 {
		return xerrors.Validation(fields, xerrors.WithMessage("invalid query parameters"))
	}
	return nil
}
