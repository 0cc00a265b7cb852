package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNotFound reports that none of the candidate executables was found.
var ErrNotFound = errors.New("executable not found")

// Requirement defines an external dependency datefixer relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Candidates are tried in order when Command is empty.
	Candidates []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// A requirement without a command is resolved through its candidates.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" && len(req.Candidates) == 0 {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := Locate(cmd, req.Candidates, nil)
		if err != nil {
			if status.Command == "" {
				status.Command = strings.Join(req.Candidates, "|")
			}
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Command = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Locate resolves an executable. A configured value containing a path
// separator must point at an executable file; a bare configured name is looked
// up on PATH. With nothing configured, each candidate name is tried next to
// the running executable and then on PATH.
func Locate(configured string, candidates []string, lookPath func(string) (string, error)) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	configured = strings.TrimSpace(configured)
	if configured != "" {
		if strings.ContainsRune(configured, filepath.Separator) {
			if IsExecutable(configured) {
				return configured, nil
			}
			return "", fmt.Errorf("%w: %s", ErrNotFound, configured)
		}
		if path, err := lookPath(configured); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, configured)
	}
	if self, err := os.Executable(); err == nil {
		dir := filepath.Dir(self)
		for _, name := range candidates {
			candidate := filepath.Join(dir, name)
			if IsExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	for _, name := range candidates {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

// IsExecutable reports whether path is a regular file with an execute bit.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode().Perm()&0o111 != 0
}
