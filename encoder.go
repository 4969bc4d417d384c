package guard

import (
	"crypto/subtle"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptPrefix = "{bcrypt}"
	noopPrefix   = "{noop}"
)

type PasswordEncoder interface {
	EncodePassword(raw string) (string, error)
	IsPasswordValid(encoded string, raw string) (bool, error)
	// Supports reports whether encoded is in a format this encoder can verify.
	Supports(encoded string) bool
}

type passwordEncoder struct {
	cost int
}

// NewPasswordEncoder returns a bcrypt encoder that also understands `{noop}` plain values.
// Encoded values are always emitted with the `{bcrypt}` prefix.
func NewPasswordEncoder() PasswordEncoder {
	return &passwordEncoder{cost: bcrypt.DefaultCost}
}

func (e *passwordEncoder) EncodePassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), e.cost)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return bcryptPrefix + string(hash), nil
}

func (e *passwordEncoder) Supports(encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, noopPrefix):
		return true
	case strings.HasPrefix(encoded, bcryptPrefix):
		return isBcryptHash(strings.TrimPrefix(encoded, bcryptPrefix))
	default:
		return isBcryptHash(encoded)
	}
}

func (e *passwordEncoder) IsPasswordValid(encoded string, raw string) (bool, error) {
	if strings.HasPrefix(encoded, noopPrefix) {
		plain := strings.TrimPrefix(encoded, noopPrefix)
		return subtle.ConstantTimeCompare([]byte(plain), []byte(raw)) == 1, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(strings.TrimPrefix(encoded, bcryptPrefix)), []byte(raw))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	return true, nil
}

func isBcryptHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}
