package models

import (
	"fmt"
	"math/rand/v2"
	"regexp"
)

const BodyCodePrefix = "SK"

var bodyCodePattern = regexp.MustCompile(`^[A-Z]{2,6}-[0-9]{4}-[A-Z]$`)

// NewBodyCode returns a display token of the form PREFIX-####-LETTER. It is
// cosmetic and makes no uniqueness promise.
func NewBodyCode(prefix string) string {
	if prefix == "" {
		prefix = BodyCodePrefix
	}
	return fmt.Sprintf("%s-%04d-%c", prefix, rand.IntN(10000), 'A'+rune(rand.IntN(26)))
}

func ValidBodyCode(code string) bool {
	return bodyCodePattern.MatchString(code)
}
