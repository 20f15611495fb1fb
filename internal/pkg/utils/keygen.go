package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a random uppercase code of n characters after the
// prefix. The alphabet omits easily confused glyphs (0/O, 1/I) because the
// codes are typed by hand at checkout.
func GenerateCode(prefix string, n int) (string, error) {
	var sb strings.Builder
	sb.WriteString(prefix)

	for range n {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeChars[num.Int64()])
	}

	return sb.String(), nil
}
