package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout has minute granularity: two exports of the same account
// within one minute write the same file.
const TimestampLayout = "01-02-2006-15-04"

// ArtifactName returns <prefix>-<id>-<MM-DD-YYYY-HH-MM>.json.
func ArtifactName(prefix, id string, t time.Time) string {
	safe := strings.NewReplacer("/", "_", `\`, "_").Replace(id)
	return fmt.Sprintf("%s-%s-%s.json", prefix, safe, t.Format(TimestampLayout))
}

// ArtifactPath joins ArtifactName onto dir.
func ArtifactPath(dir, prefix, id string, t time.Time) string {
	return filepath.Join(dir, ArtifactName(prefix, id, t))
}

// ListArtifacts returns every export in dir produced with prefix.
func ListArtifacts(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(prefix)+"-*.json"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// RemoveArtifacts deletes every export in dir produced with prefix and
// returns the number removed.
func RemoveArtifacts(dir, prefix string) (int, error) {
	paths, err := ListArtifacts(dir, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return n, err
		}
		n++
	}
	return n, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
