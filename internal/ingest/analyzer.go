package ingest

import (
	"path"
	"sort"
	"strings"

	"brdagent/internal/github"
)

// Priority orders ingestion: documentation first, then code.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// PlannedFile is one file selected for ingestion.
type PlannedFile struct {
	Path     string
	Size     int
	Priority Priority
	Reason   string
}

const (
	// maxFileBytes skips files too large to chunk usefully.
	maxFileBytes = 512 * 1024

	// maxCodeFiles caps how much source code one pass pulls in.
	maxCodeFiles = 200
)

var docDirs = map[string]bool{
	"docs": true, "documentation": true, "doc": true,
	"wiki": true, "guides": true, "manual": true,
}

var codeDirs = map[string]bool{
	"src": true, "lib": true, "app": true, "server": true,
	"backend": true, "frontend": true, "cmd": true,
	"internal": true, "pkg": true,
}

var textExts = map[string]bool{
	"md": true, "markdown": true, "rst": true, "txt": true,
}

var codeExts = map[string]bool{
	"go": true, "py": true, "pyi": true,
	"js": true, "jsx": true, "mjs": true, "cjs": true,
	"ts": true, "tsx": true,
	"java": true, "rs": true, "rb": true, "php": true,
}

// BuildPlan selects and prioritizes files from a repository tree:
// READMEs and documentation directories first, then source files under
// recognized code directories. Binary and oversized files are skipped.
func BuildPlan(entries []github.TreeEntry) []PlannedFile {
	var plan []PlannedFile
	codeCount := 0

	for _, e := range entries {
		if e.Size > maxFileBytes {
			continue
		}

		lower := strings.ToLower(e.Path)
		base := path.Base(lower)
		ext := strings.TrimPrefix(path.Ext(lower), ".")
		topDir := topLevelDir(lower)

		switch {
		case strings.HasPrefix(base, "readme"):
			plan = append(plan, PlannedFile{
				Path: e.Path, Size: e.Size,
				Priority: PriorityHigh, Reason: "README file",
			})
		case docDirs[topDir] && (textExts[ext] || ext == ""):
			plan = append(plan, PlannedFile{
				Path: e.Path, Size: e.Size,
				Priority: PriorityHigh, Reason: "documentation directory",
			})
		case codeDirs[topDir] && codeExts[ext]:
			if codeCount >= maxCodeFiles {
				continue
			}
			codeCount++
			plan = append(plan, PlannedFile{
				Path: e.Path, Size: e.Size,
				Priority: PriorityMedium, Reason: "code directory",
			})
		case textExts[ext] && !strings.Contains(lower, "/"):
			// Top-level docs like CHANGELOG.md or CONTRIBUTING.md.
			plan = append(plan, PlannedFile{
				Path: e.Path, Size: e.Size,
				Priority: PriorityLow, Reason: "top-level document",
			})
		}
	}

	sort.SliceStable(plan, func(i, j int) bool {
		return plan[i].Priority < plan[j].Priority
	})
	return plan
}

// filterPlan keeps only planned files under the given path prefix.
func filterPlan(plan []PlannedFile, prefix string) []PlannedFile {
	prefix = strings.TrimSuffix(prefix, "/")
	var out []PlannedFile
	for _, pf := range plan {
		if pf.Path == prefix || strings.HasPrefix(pf.Path, prefix+"/") {
			out = append(out, pf)
		}
	}
	return out
}

func topLevelDir(p string) string {
	if i := strings.IndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return ""
}
