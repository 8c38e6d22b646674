package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// TablePath returns the object key of a table's Parquet export:
// <prefix>/<table>.parquet. Every prefix segment must be a plain path
// component.
func TablePath(prefix, tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	segments := make([]string, 0, 4)
	for _, segment := range strings.Split(strings.Trim(strings.TrimSpace(prefix), "/"), "/") {
		if segment == "" {
			continue
		}
		if err := validatePathComponent(segment, "prefix segment"); err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}
	segments = append(segments, tableName+".parquet")
	return path.Join(segments...), nil
}

// ResolveKey joins key under root and rejects keys that would climb out of
// it. Leading slashes are ignored on both.
func ResolveKey(root, key string) (string, error) {
	key = strings.TrimSpace(strings.TrimLeft(key, "/"))
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	root = CleanRoot(root)
	if root == "" {
		return cleaned, nil
	}
	return root + "/" + cleaned, nil
}

func CleanRoot(root string) string {
	root = path.Clean("/" + strings.TrimSpace(root))
	return strings.TrimPrefix(root, "/")
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) || strings.Contains(value, "..") {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
