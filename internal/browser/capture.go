// internal/browser/capture.go
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/xkilldash9x/pathwright/internal/resolver"
)

const captureTimeLayout = "20060102_150405"

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SnapshotName names a page capture after its host and the capture time,
// e.g. "shop.example.com_20250102_150405.html".
func SnapshotName(pageURL string, at time.Time) string {
	host := unsafeFileChars.ReplaceAllString(resolver.Hostname(pageURL), "_")
	if host == "" || host == "_" {
		host = "page"
	}
	return fmt.Sprintf("%s_%s.html", host, at.Format(captureTimeLayout))
}

// WriteCapture stores data as name inside dir, creating dir if needed, and
// returns the full path written.
func WriteCapture(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}
