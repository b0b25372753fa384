package uuid

import (
	"os"
	"path/filepath"

	google_uuid "github.com/google/uuid"
)

// MustUUID returns a random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// TempPath returns a fresh path under the system temp directory whose
// last element is prefix followed by a random UUID. Nothing is created.
func TempPath(prefix string) string {
	return filepath.Join(os.TempDir(), prefix+"-"+MustUUID())
}
