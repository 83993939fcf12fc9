package composition

import "errors"

// Custom composition service errors
var (
	// ErrCompositionNotFound indicates the requested composition does not exist
	ErrCompositionNotFound = errors.New("composition not found")

	// ErrDuplicateName indicates a composition with the same name already exists
	ErrDuplicateName = errors.New("composition name already exists")

	// ErrInvalidName indicates the name is empty or too long
	ErrInvalidName = errors.New("composition name must be 1-255 characters")

	// ErrInvalidURL indicates a source URL that cannot be parsed
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrInvalidMenu indicates menu content that is not valid JSON
	ErrInvalidMenu = errors.New("menu content must be valid JSON")
)

// IsNotFound checks if the error is a composition not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCompositionNotFound)
}

// IsDuplicateName checks if the error is a duplicate name error
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsValidationError checks if the error rejects the caller's input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidName) || errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrInvalidMenu)
}
