// Package prompts provides the classifier and brainstorming prompt templates.
// Templates are JSON files embedded at compile time and parsed once.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// File and key names used by the triage cascade.
const (
	TriageFile       = "triage.json"
	KeyBatchTriage   = "batch-triage"
	KeyConfirm       = "confirm-relevance"
	KeyGenerateQuery = "generate-queries"
)

var (
	loadOnce sync.Once
	loaded   map[string]map[string]string
	loadErr  error
)

func all() (map[string]map[string]string, error) {
	loadOnce.Do(func() {
		loaded = make(map[string]map[string]string)
		loadErr = fs.WalkDir(promptFiles, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := promptFiles.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read prompt file %s: %w", path, err)
			}
			var entries map[string]string
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("failed to parse prompt file %s: %w", path, err)
			}
			loaded[path] = entries
			return nil
		})
	})
	return loaded, loadErr
}

// Get retrieves a prompt by filename and key.
func Get(filename, key string) (string, error) {
	files, err := all()
	if err != nil {
		return "", err
	}
	entries, ok := files[filename]
	if !ok {
		return "", fmt.Errorf("prompt file %s not found", filename)
	}
	prompt, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Keys returns the sorted keys of a prompt file.
func Keys(filename string) ([]string, error) {
	files, err := all()
	if err != nil {
		return nil, err
	}
	entries, ok := files[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
