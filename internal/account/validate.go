package account

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is returned for names that cannot name an account.
var ErrInvalidName = errors.New("invalid account name")

// An account name is a directory under BaseDir and the last element of its
// object path. A leading '-' would read as a flag on the command line.
var nameRegexp = regexp.MustCompile(`^[a-z0-9_][a-z0-9_-]{0,63}$`)

// ValidateName checks that name conforms to account naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 of a-z, 0-9, '_' and '-', not starting with '-'", ErrInvalidName, name)
	}
	return nil
}
