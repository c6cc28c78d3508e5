package circle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// The alphabet leaves out 0, O, 1 and I so codes survive being read aloud.
const (
	inviteCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength      = 8
	maxInviteCodeAttempts = 5
)

// GenerateInviteCode returns a random code of inviteCodeLength characters
// drawn from inviteCodeAlphabet.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	var b strings.Builder
	b.Grow(inviteCodeLength)
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidInviteCode reports whether code has the right length and alphabet.
func ValidInviteCode(code string) bool {
	if len(code) != inviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
