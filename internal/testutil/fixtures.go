package testutil

import (
	"embed"
	"encoding/json"

	"github.com/BurntSushi/toml"

	"github.com/hearth-panel/hearth-ctl/internal/config"
	"github.com/hearth-panel/hearth-ctl/internal/model"
)

//go:embed fixtures/*.json fixtures/*.toml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

func loadJSON[T any](name string) (*T, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadConfigFixture decodes a TOML config fixture over the defaults for
// paths. Environment variables are not applied.
func LoadConfigFixture(paths *config.Paths, name string) (*config.Config, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	cfg := config.Default(paths)
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BungeecordEgg returns the Bungeecord egg fixture.
func BungeecordEgg() (*model.Egg, error) {
	return loadJSON[model.Egg]("bungeecord_egg.json")
}

// TestNode returns the node fixture, node-1 on 10.0.0.1 with ports
// 25565-25570.
func TestNode() (*model.Node, error) {
	return loadJSON[model.Node]("node.json")
}

// TestUser returns the owner fixture.
func TestUser() (*model.User, error) {
	return loadJSON[model.User]("user.json")
}

// ValidConfig returns the valid config fixture.
func ValidConfig(paths *config.Paths) (*config.Config, error) {
	return LoadConfigFixture(paths, "valid_config.toml")
}

// InvalidConfig returns the invalid config fixture.
func InvalidConfig(paths *config.Paths) (*config.Config, error) {
	return LoadConfigFixture(paths, "invalid_config.toml")
}
