package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents invalid caller input
	TypeValidation Type = "VALIDATION"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflict errors
	TypeConflict Type = "CONFLICT"

	// TypeBusiness represents business rule violations
	TypeBusiness Type = "BUSINESS"

	// TypeExternal represents errors from external services (SMTP relays)
	TypeExternal Type = "EXTERNAL"

	// TypeUnavailable represents a backing store that could not be reached
	TypeUnavailable Type = "UNAVAILABLE"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// HTTPStatus returns the default HTTP status for the type
func (t Type) HTTPStatus() int {
	switch t {
	case TypeValidation:
		return 400
	case TypeNotFound:
		return 404
	case TypeConflict:
		return 409
	case TypeBusiness:
		return 422
	case TypeExternal:
		return 502
	case TypeUnavailable:
		return 503
	default:
		return 500
	}
}
