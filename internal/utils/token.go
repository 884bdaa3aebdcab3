package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateAccessToken returns an unguessable token for attachment download links.
func GenerateAccessToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
