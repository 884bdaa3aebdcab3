package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const inviteCodeGroups = 3

// GenerateInviteCode returns a random code such as 9F1C-04AB-E7D2
func GenerateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeGroups*2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	raw := strings.ToUpper(hex.EncodeToString(buf))
	groups := make([]string, inviteCodeGroups)
	for i := range groups {
		groups[i] = raw[i*4 : i*4+4]
	}
	return strings.Join(groups, "-"), nil
}
