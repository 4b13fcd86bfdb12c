package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// Prompt names, matching the embedded file names without extension.
const (
	CreateSummary = "create_summary"
	ExtendSummary = "extend_summary"
)

//go:embed *.md
var promptFiles embed.FS

var (
	loadOnce sync.Once
	loaded   map[string]string
	loadErr  error
)

// GetPrompts returns every prompt file keyed by file name without extension.
// Trailing newlines are trimmed; template text is otherwise kept verbatim.
func GetPrompts() (map[string]string, error) {
	loadOnce.Do(func() {
		loaded, loadErr = readPrompts()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	out := make(map[string]string, len(loaded))
	for k, v := range loaded {
		out[k] = v
	}
	return out, nil
}

func readPrompts() (map[string]string, error) {
	prompts := make(map[string]string)
	err := fs.WalkDir(promptFiles, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		content, err := promptFiles.ReadFile(path)
		if err != nil {
			return err
		}
		fileName := filepath.Base(path)
		key := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		prompts[key] = strings.TrimRight(string(content), "\r\n")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prompts, nil
}

// GetSinglePrompt returns one prompt by name.
func GetSinglePrompt(name string) (string, error) {
	prompts, err := GetPrompts()
	if err != nil {
		return "", err
	}
	val, ok := prompts[name]
	if !ok {
		return "", fmt.Errorf("prompt %q does not exist", name)
	}
	return val, nil
}
