package services

import (
	"crypto/md5"
	"fmt"
	"strconv"
	"time"
)

// nowFunc is a seam for tests that need deterministic keys and timestamps.
var nowFunc = time.Now

// deriveStorageKey builds the opaque blob key for a primary upload:
// {ownerID}/{digest}-{originalName}. The digest folds the filename, upload
// instant and owner together, so keys are unique per upload while the
// owner prefix namespaces them per identity.
func deriveStorageKey(originalName, ownerID string, at time.Time) string {
	sum := md5.Sum([]byte(originalName + strconv.FormatInt(at.UnixMilli(), 10) + ownerID))
	return fmt.Sprintf("%s/%x-%s", ownerID, sum, originalName)
}

// deriveVersionKey suffixes the parent key with a timestamp discriminator,
// keeping all versions co-located under the same logical prefix.
func deriveVersionKey(parentKey string, at time.Time) string {
	return fmt.Sprintf("%s_v%d", parentKey, at.UnixMilli())
}
