// Package egg reads egg files into the panel. An egg file is YAML (or the
// JSON export of an egg, which is valid YAML) describing a server type: its
// startup command, container images and configurable variables.
package egg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-yaml"

	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/rules"
	"github.com/hearth-panel/hearth-ctl/internal/startup"
	"github.com/hearth-panel/hearth-ctl/internal/store"
)

var envVariablePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// File is the on-disk egg format.
type File struct {
	Meta        Meta          `yaml:"meta,omitempty"`
	UUID        string        `yaml:"uuid,omitempty"`
	Name        string        `yaml:"name"`
	Author      string        `yaml:"author"`
	Description string        `yaml:"description,omitempty"`
	Images      yaml.MapSlice `yaml:"docker_images,omitempty"`
	Image       string        `yaml:"docker_image,omitempty"`
	Startup     string        `yaml:"startup"`
	Variables   []Variable    `yaml:"variables,omitempty"`
}

// Meta identifies the file format version.
type Meta struct {
	Version string `yaml:"version,omitempty"`
}

// Variable is one variable definition in an egg file.
type Variable struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	EnvVariable  string `yaml:"env_variable"`
	DefaultValue string `yaml:"default_value"`
	UserViewable bool   `yaml:"user_viewable"`
	UserEditable bool   `yaml:"user_editable"`
	Rules        string `yaml:"rules"`
}

// Parse decodes and validates an egg file. The default image is
// docker_image when set, otherwise the first entry of docker_images.
func Parse(data []byte) (*model.Egg, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse egg file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.Egg(), nil
}

// Validate reports every problem with the file at once.
func (f *File) Validate() error {
	verr := errors.NewValidationError()
	if f.Name == "" {
		verr.Add("name", "The name field is required.")
	}
	if f.Author == "" {
		verr.Add("author", "The author field is required.")
	}
	if f.Startup == "" {
		verr.Add("startup", "The startup field is required.")
	}
	if f.defaultImage() == "" {
		verr.Add("docker_images", "At least one docker image is required.")
	}

	defaults := make(map[string]string, len(f.Variables))
	for i, v := range f.Variables {
		field := fmt.Sprintf("variables.%d", i)
		if v.Name == "" {
			verr.Add(field+".name", "The name field is required.")
		}
		switch {
		case !envVariablePattern.MatchString(v.EnvVariable):
			verr.Add(field+".env_variable", fmt.Sprintf("The env variable %q must be upper case letters, digits and underscores.", v.EnvVariable))
		case hasKey(defaults, v.EnvVariable):
			verr.Add(field+".env_variable", fmt.Sprintf("The env variable %s is defined twice.", v.EnvVariable))
		}
		if _, err := rules.Parse(v.Rules); err != nil {
			verr.Add(field+".rules", err.Error())
		}
		defaults[v.EnvVariable] = v.DefaultValue
	}

	if f.Startup != "" {
		if err := startup.Check(f.Startup, defaults); err != nil {
			verr.Add("startup", err.Error())
		}
	}

	return verr.OrNil()
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func (f *File) defaultImage() string {
	if f.Image != "" {
		return f.Image
	}
	for _, item := range f.Images {
		if s, ok := item.Value.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Egg converts the file to a model egg. Variables are sorted in file order.
func (f *File) Egg() *model.Egg {
	egg := &model.Egg{
		UUID:         f.UUID,
		Author:       f.Author,
		Name:         f.Name,
		Description:  f.Description,
		Startup:      f.Startup,
		DefaultImage: f.defaultImage(),
	}
	for i, v := range f.Variables {
		egg.Variables = append(egg.Variables, model.VariableDefinition{
			Name:         v.Name,
			Description:  v.Description,
			EnvVariable:  v.EnvVariable,
			DefaultValue: v.DefaultValue,
			Rules:        v.Rules,
			UserViewable: v.UserViewable,
			UserEditable: v.UserEditable,
			Sort:         i + 1,
		})
	}
	return egg
}

// Marshal encodes egg in the egg file format.
func Marshal(egg *model.Egg) ([]byte, error) {
	f := File{
		Meta:        Meta{Version: "hearth_v1"},
		UUID:        egg.UUID,
		Name:        egg.Name,
		Author:      egg.Author,
		Description: egg.Description,
		Images:      yaml.MapSlice{{Key: "default", Value: egg.DefaultImage}},
		Startup:     egg.Startup,
	}
	for _, v := range egg.Variables {
		f.Variables = append(f.Variables, Variable{
			Name:         v.Name,
			Description:  v.Description,
			EnvVariable:  v.EnvVariable,
			DefaultValue: v.DefaultValue,
			UserViewable: v.UserViewable,
			UserEditable: v.UserEditable,
			Rules:        v.Rules,
		})
	}
	return yaml.Marshal(&f)
}

// LoadFile reads and parses an egg file. Relative names resolve inside the
// eggs directory; absolute paths are read as given.
func LoadFile(paths *config.Paths, name string) (*model.Egg, error) {
	path := name
	if !filepath.IsAbs(name) {
		var err error
		if path, err = paths.EggFile(name); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("egg file", path)
		}
		return nil, fmt.Errorf("failed to read egg file: %w", err)
	}
	return Parse(data)
}

// Import stores egg with its variables. An egg whose UUID is already
// stored is a Conflict.
func Import(ctx context.Context, st *store.Store, egg *model.Egg) error {
	err := st.WithTx(ctx, func(q *store.Queries) error {
		return q.CreateEgg(ctx, egg)
	})
	if store.IsUniqueViolation(err) {
		return errors.Conflict(fmt.Sprintf("egg %s is already imported", egg.UUID))
	}
	if err != nil {
		return fmt.Errorf("failed to import egg %s: %w", egg.Name, err)
	}
	logging.Debug("egg imported", "name", egg.Name, "uuid", egg.UUID, "variables", len(egg.Variables))
	return nil
}
