package datastore

import (
	"regexp"

	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)

// QuoteIdentifier returns name wrapped in backticks for use as a MySQL
// identifier. Only unquoted-identifier characters are accepted, so the
// result can never close the quote early.
func QuoteIdentifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", apperrors.InvalidArgument("invalid identifier").WithDetail("identifier", name)
	}
	return "`" + name + "`", nil
}
