package event

import (
	"crypto/rand"
	"encoding/base32"
	"strings"

	"github.com/pkg/errors"
)

// codeBytes random bytes make an 8 characters code.
const codeBytes = 5

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateCode returns a new random check-in code, eg. "K7QX2MZP".
func GenerateCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return codeEncoding.EncodeToString(b), nil
}

// NormalizeCode turns a code typed by a human ("k7qx-2mzp") into its canonical form.
func NormalizeCode(code string) string {
	var sb strings.Builder
	for _, r := range strings.ToUpper(code) {
		switch {
		case r == ' ', r == '-', r == '\t':
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
