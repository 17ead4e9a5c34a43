// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package payload defines the provisioning payload handed to the
// bootstrap sequencer: a set of settings plus named text blobs which are
// written verbatim beneath the service account's home directory.
package payload

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ScriptMode is the permission given to payload files which are
	// shell scripts.
	ScriptMode os.FileMode = 0755

	// FileMode is the permission given to all other payload files.
	FileMode os.FileMode = 0644
)

// File is a single named blob of the payload.
type File struct {
	// Name is the path of the file relative to the configuration root.
	Name string

	// Content is written to disk byte for byte.
	Content []byte
}

// Mode returns the permissions the file should be written with.
func (f File) Mode() os.FileMode {
	if strings.HasSuffix(f.Name, ".sh") {
		return ScriptMode
	}
	return FileMode
}

// Executable reports whether the file is a script.
func (f File) Executable() bool {
	return f.Mode()&0111 != 0
}

// Payload is the immutable bundle assembled before the machine boots.
type Payload struct {
	// Settings holds the raw sequencer settings, coerced later by
	// the config package.
	Settings map[string]interface{}

	files []File
}

// document is the on-disk form of a payload.
type document struct {
	Settings map[string]interface{} `yaml:"settings"`
	Files    map[string]string      `yaml:"files"`
}

// New returns a payload holding the given settings and files. The files
// are validated and sorted by name.
func New(settings map[string]interface{}, files map[string][]byte) (*Payload, error) {
	p := &Payload{Settings: settings}
	if p.Settings == nil {
		p.Settings = make(map[string]interface{})
	}
	for name, content := range files {
		if err := ValidateName(name); err != nil {
			return nil, errors.Trace(err)
		}
		p.files = append(p.files, File{Name: name, Content: content})
	}
	sort.Slice(p.files, func(i, j int) bool {
		return p.files[i].Name < p.files[j].Name
	})
	return p, nil
}

// Parse decodes a YAML payload document.
func Parse(data []byte) (*Payload, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Annotate(err, "cannot parse payload")
	}
	files := make(map[string][]byte, len(doc.Files))
	for name, content := range doc.Files {
		files[name] = []byte(content)
	}
	p, err := New(doc.Settings, files)
	if err != nil {
		return nil, errors.Annotate(err, "invalid payload")
	}
	return p, nil
}

// Marshal encodes the payload back to its YAML document form.
func (p *Payload) Marshal() ([]byte, error) {
	doc := document{
		Settings: p.Settings,
		Files:    make(map[string]string, len(p.files)),
	}
	for _, f := range p.files {
		doc.Files[f.Name] = string(f.Content)
	}
	data, err := yaml.Marshal(doc)
	return data, errors.Trace(err)
}

// Files returns the payload files sorted by name.
func (p *Payload) Files() []File {
	out := make([]File, len(p.files))
	copy(out, p.files)
	return out
}

// File returns the named file.
func (p *Payload) File(name string) (File, error) {
	for _, f := range p.files {
		if f.Name == name {
			return f, nil
		}
	}
	return File{}, errors.NotFoundf("payload file %q", name)
}

// ValidateName checks that name is a clean relative path which cannot
// escape the directory it is written under.
func ValidateName(name string) error {
	if name == "" {
		return errors.NotValidf("empty file name")
	}
	if path.IsAbs(name) {
		return errors.NotValidf("absolute file name %q", name)
	}
	if path.Clean(name) != name {
		return errors.NotValidf("unclean file name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." {
			return errors.NotValidf("file name %q with relative component", name)
		}
	}
	return nil
}
