package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"saska-advisor-go/internal/models"
)

const (
	MinPasswordLength = 8
	MinPasswordScore  = 2
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// PasswordScore rates a password 0..4: one point each for length over 6,
// length over 10, a digit and a symbol.
func PasswordScore(pw string) int {
	score := 0
	if len(pw) > 6 {
		score++
	}
	if len(pw) > 10 {
		score++
	}
	if strings.IndexFunc(pw, unicode.IsDigit) >= 0 {
		score++
	}
	if strings.IndexFunc(pw, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	}) >= 0 {
		score++
	}
	return score
}

// StrengthLabel maps a score to the label shown next to password fields.
func StrengthLabel(score int) string {
	switch {
	case score <= 1:
		return "weak"
	case score == 2:
		return "fair"
	case score == 3:
		return "good"
	}
	return "strong"
}

func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", models.ErrValidation, MinPasswordLength)
	}
	if PasswordScore(pw) < MinPasswordScore {
		return fmt.Errorf("%w: password is too weak", models.ErrValidation)
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%w: invalid email address", models.ErrValidation)
	}
	return nil
}

func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is compared against when the user does not exist so both login
// failure paths spend the same bcrypt time.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("saska-dummy-password"), bcrypt.DefaultCost)

func checkPassword(hash, pw string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
