package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// keyPrefix is part of the public key format. External receivers deduplicate
// on these keys, so the format must stay stable across releases.
const keyPrefix = "bday"

// keyHexLen is the number of hex characters kept from the digest.
const keyHexLen = 16

// Key derives the idempotency key for one occurrence of one subject's event.
//
// The key is a one-way hash of (subject id, occurrence instant, kind):
// identical inputs always produce the identical key, and the key reveals
// nothing about the inputs. It serves double duty as the uniqueness
// constraint at event creation and as the correlation token sent with every
// delivery attempt, retries included.
func Key(subjectID string, targetUTC time.Time, kind string) string {
	seed := fmt.Sprintf("%s|%s|%s", subjectID, targetUTC.UTC().Format(time.RFC3339), kind)
	sum := sha256.Sum256([]byte(seed))
	return keyPrefix + "-" + hex.EncodeToString(sum[:])[:keyHexLen]
}
