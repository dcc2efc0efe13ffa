package vault

import (
	"path/filepath"
	"strings"
)

// resolveUnderRoot resolves relPath against absRoot and returns both the
// absolute candidate and its slash-normalised form relative to the root.
// It rejects absolute inputs, parent traversal, and symlink escapes.
func resolveUnderRoot(absRoot, relPath string) (abs string, rel string, err error) {
	// Reject absolute inputs early
	if filepath.IsAbs(relPath) {
		return "", "", ToolError{Code: "ERR_PATH_OUTSIDE_SANDBOX", Message: "absolute paths are not allowed"}
	}

	// Clean and normalise the provided relative path
	cleaned := filepath.Clean(relPath)
	// Special case: empty means "." (current dir)
	if cleaned == "" {
		cleaned = "."
	}

	// Join to make a candidate under the root
	candidate := filepath.Join(absRoot, cleaned)

	// Best-effort symlink resolution.
	// 1) Resolve the whole candidate if it exists.
	// 2) Otherwise, resolve the deepest existing ancestor (the parent dir)
	//    and rejoin the final segment. This reveals escapes via a symlinked parent.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else {
		// Resolve the parent if possible (useful when the leaf file doesn't exist yet)
		parent := filepath.Dir(candidate)
		if resolvedParent, err2 := filepath.EvalSymlinks(parent); err2 == nil {
			candidate = filepath.Join(resolvedParent, filepath.Base(candidate))
		}
	}

	// Boundary check using filepath.Rel (robust against partial prefix matches)
	r, err := filepath.Rel(absRoot, candidate)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) || filepath.IsAbs(r) {
		return "", "", ToolError{Code: "ERR_PATH_OUTSIDE_SANDBOX", Message: "requested path resolves outside the sandbox root"}
	}

	return candidate, filepath.ToSlash(r), nil
}

// underDenied reports whether the slash-form relative path is the denied
// directory itself or anything beneath it.
func underDenied(rel, dir string) bool {
	return rel == dir || strings.HasPrefix(rel, dir+"/")
}

// ValidateReadPath resolves relPath against absRoot and returns an absolute
// path inside the sandbox. Reads under .git/ and .agent/ are denied.
// On violation, returns a ToolError.
func ValidateReadPath(absRoot, relPath string) (string, error) {
	abs, rel, err := resolveUnderRoot(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underDenied(rel, ".git") || underDenied(rel, ".agent") {
		return "", ToolError{Code: "ERR_DENIED_READ", Message: "reads under .git/ or .agent/ are not allowed"}
	}
	return abs, nil
}

// ValidateWritePath resolves relPath against absRoot and returns an absolute
// path inside the sandbox. Writes under .git/ and .agent/ are denied, as are
// writes to go.mod and go.sum at any depth. On violation, returns a ToolError.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	abs, rel, err := resolveUnderRoot(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underDenied(rel, ".git") || underDenied(rel, ".agent") {
		return "", ToolError{Code: "ERR_DENIED_WRITE", Message: "writes under .git/ or .agent/ are not allowed"}
	}
	switch filepath.Base(rel) {
	case "go.mod", "go.sum":
		return "", ToolError{Code: "ERR_DENIED_WRITE", Message: "writes to go.mod or go.sum are not allowed"}
	}
	return abs, nil
}
