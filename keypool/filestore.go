package keypool

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hupe1980/capmesh/core"
)

// credentialFile mirrors the on-disk TOML layout:
//
//	[[credentials]]
//	provider = "openai"
//	secret   = "sk-..."
//	owner    = "team-a"
type credentialFile struct {
	Credentials []credentialEntry `toml:"credentials"`
}

type credentialEntry struct {
	Provider string `toml:"provider"`
	Secret   string `toml:"secret"`
	Owner    string `toml:"owner"`
}

func (e credentialEntry) validate() error {
	if strings.TrimSpace(e.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(e.Secret) == "" {
		return fmt.Errorf("secret is required")
	}
	return nil
}

// LoadFile reads a TOML credential file and registers every entry with the
// pool. An empty owner defaults to the provider id so attempt records always
// carry a non-secret label.
func (m *Manager) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("keypool: read credential file: %w", err)
	}
	return m.LoadTOML(data)
}

// LoadTOML registers credentials from raw TOML bytes. Returns the number of
// credentials added.
func (m *Manager) LoadTOML(data []byte) (int, error) {
	var file credentialFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("keypool: parse credential file: %w", err)
	}

	for i, entry := range file.Credentials {
		if err := entry.validate(); err != nil {
			return 0, fmt.Errorf("keypool: credential %d: %w", i, err)
		}
	}

	for _, entry := range file.Credentials {
		owner := entry.Owner
		if owner == "" {
			owner = entry.Provider
		}
		m.Add(core.NewCredential(entry.Provider, entry.Secret, owner))
	}
	return len(file.Credentials), nil
}
