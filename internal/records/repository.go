package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile is used when no record file is configured.
const DefaultFile = "patients_data.json"

// Repository supplies the ordered record list for a run.
type Repository interface {
	All() ([]Record, error)
}

// FileRepository reads records from a JSON or YAML document holding a list.
type FileRepository struct {
	path string
}

// NewFileRepository points a repository at path.
func NewFileRepository(path string) *FileRepository {
	if path == "" {
		path = DefaultFile
	}
	return &FileRepository{path: path}
}

// Path returns the backing file.
func (r *FileRepository) Path() string { return r.path }

// All parses and normalises every record, preserving file order.
func (r *FileRepository) All() ([]Record, error) {
	content, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("records: read %s: %w", r.path, err)
	}
	list, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("records: %s: %w", r.path, err)
	}
	return list, nil
}

// Parse decodes a record list. YAML is a superset of JSON so one decoder
// covers both file forms.
func Parse(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("records: payload is empty")
	}
	var raw []Record
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("records: decode: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for i, rec := range raw {
		normalized, err := rec.Normalized()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		out = append(out, normalized)
	}
	return out, nil
}

// Save writes records as indented JSON, creating parent directories.
func Save(path string, list []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if list == nil {
		list = []Record{}
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
