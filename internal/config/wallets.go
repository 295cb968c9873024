package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// WalletSeed is one operator-supplied wallet to track.
type WalletSeed struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

type walletsFile struct {
	Wallets []WalletSeed `yaml:"wallets"`
}

// LoadWalletSeeds reads the YAML wallet list. Addresses are case-normalized;
// entries without an address are rejected.
func LoadWalletSeeds(path string) ([]WalletSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wallets file: %w", err)
	}

	var parsed walletsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse wallets file: %w", err)
	}

	seeds := make([]WalletSeed, 0, len(parsed.Wallets))
	for i, seed := range parsed.Wallets {
		addr := strings.ToLower(strings.TrimSpace(seed.Address))
		if addr == "" {
			return nil, fmt.Errorf("wallets file entry %d has no address", i)
		}
		seeds = append(seeds, WalletSeed{Address: addr, Label: seed.Label})
	}
	return seeds, nil
}
