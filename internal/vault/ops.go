package vault

import (
	"os"
	"path/filepath"
)

// ReadFile reads a file addressed by a relative path under the read root.
// It returns a ToolError on policy violations and standard errors for I/O issues.
func (v *Vault) ReadFile(relPath string) (string, error) {
	absPath, err := ValidateReadPath(v.readRoot, relPath)
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", ToolError{Code: "ERR_NOT_A_FILE", Message: "path is a directory"}
	}

	b, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFile writes content to a file addressed by a relative path under the
// write root, creating parent directories as needed.
func (v *Vault) WriteFile(relPath, content string) error {
	absPath, err := ValidateWritePath(v.writeRoot, relPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(absPath, []byte(content), 0o644)
}

// ListFiles lists the immediate entries of a directory under the read root,
// directories marked with a trailing "/". The result is never nil for an
// existing directory, only empty.
func (v *Vault) ListFiles(relDir string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	absDir, err := ValidateReadPath(v.readRoot, relDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}
