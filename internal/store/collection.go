package store

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	repoPathRe     = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)
	invalidCharsRe = regexp.MustCompile(`[^a-z0-9_-]+`)
	collapseRe     = regexp.MustCompile(`_+`)
)

// NormalizeRepoID turns a repository identifier into a stable collection
// name. Accepts "owner/name" or a full GitHub URL; both map to the same
// name regardless of case, scheme, a trailing ".git", or slashes.
func NormalizeRepoID(repo string) (string, error) {
	s := strings.TrimSpace(repo)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "git@github.com:")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	m := repoPathRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid repository identifier %q", repo)
	}

	name := strings.ToLower(m[1] + "_" + m[2])
	name = invalidCharsRe.ReplaceAllString(name, "_")
	name = collapseRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "", fmt.Errorf("invalid repository identifier %q", repo)
	}
	return name, nil
}
