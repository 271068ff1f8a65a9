package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewApplicationNumber formats TCA-<unixMillis>-<6 upper hex>.
func NewApplicationNumber(now time.Time) (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate application number: %w", err)
	}
	return fmt.Sprintf("TCA-%d-%s", now.UnixMilli(), strings.ToUpper(hex.EncodeToString(buf))), nil
}
