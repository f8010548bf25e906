package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// ResolveWithin resolves rel against root and returns the absolute path,
// rejecting anything that would escape root. This is the only gate between
// client-supplied artifact paths and the filesystem, so the check is on the
// cleaned, absolute form rather than on the raw string.
func ResolveWithin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute paths are not allowed")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	full := filepath.Join(rootAbs, filepath.Clean(rel))
	if full != rootAbs && !strings.HasPrefix(full, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the download area")
	}
	return full, nil
}

// SplitExtraArgs splits operator-configured extra ffmpeg arguments without
// involving a shell and refuses shell metacharacters outright.
func SplitExtraArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid argument syntax: %w", err)
	}
	for _, arg := range args {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return nil, fmt.Errorf("disallowed character in argument: %s", arg)
		}
	}
	return args, nil
}
