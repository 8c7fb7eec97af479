// Package pathkey computes the stable identity key for a file within a
// library. The scanner and the reconciler both derive keys through this
// package so that a key computed from a live filesystem walk and a key
// re-derived from a persisted record are byte-identical.
package pathkey

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Key returns the identity key for a file: the tuple of the owning library
// path, the directory portion relative to that path, and the file name. Two
// files are "the same file" iff their keys are equal.
func Key(libraryPathID int, subPath, fileName string) string {
	return fmt.Sprintf("%d:%s:%s", libraryPathID, Normalize(subPath), fileName)
}

// Normalize canonicalizes a sub-path for key computation: empty and "."
// become "", separators become forward slashes, and leading/trailing slashes
// are dropped.
func Normalize(subPath string) string {
	if subPath == "" || subPath == "." {
		return ""
	}
	subPath = filepath.ToSlash(subPath)
	return strings.Trim(subPath, "/")
}

// SubPath returns the normalized directory portion of path relative to root,
// suitable for Normalize/Key. It returns "" when the file sits directly in
// root, or an error when path is not under root.
func SubPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is not under %q", path, root)
	}
	return Normalize(rel), nil
}
