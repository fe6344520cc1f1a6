package notebook

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jotter/internal/apperr"
)

// SettingsFile is the per-notebook settings file inside the directory.
const SettingsFile = ".jotterbox"

// Settings is the persisted notebook metadata.
//
// The file holds comma-terminated fields, currently just the title:
//
//	journal,
type Settings struct {
	Title string `yaml:"title"`
}

// LoadSettings reads the settings file. A missing file yields zero Settings.
// Files in the older "title: ..." YAML form are still read.
func (nb *Notebook) LoadSettings() (Settings, error) {
	var s Settings
	ok, err := nb.store.Exists(SettingsFile)
	if err != nil || !ok {
		return s, err
	}
	data, err := nb.store.Read(SettingsFile)
	if err != nil {
		return s, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("title:")) {
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("notebook: parse %s: %w", SettingsFile, err)
		}
		return s, nil
	}
	first, _, _ := strings.Cut(string(data), ",")
	s.Title = strings.TrimSpace(first)
	return s, nil
}

// SaveSettings writes the notebook title to the settings file.
func (nb *Notebook) SaveSettings() error {
	if strings.Contains(nb.title, ",") {
		return fmt.Errorf("notebook: title %q cannot be stored in %s: %w", nb.title, SettingsFile, apperr.ErrInvalid)
	}
	return nb.store.Write(SettingsFile, []byte(nb.title+","))
}
