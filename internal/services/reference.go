package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewReference builds a unique ledger reference like "DEPOSIT-1a2b3c4d".
func NewReference(kind string) string {
	prefix := strings.ToUpper(strings.ReplaceAll(kind, "_", "-"))
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", prefix, id[:12])
}
