package chains

import (
	"fmt"
	"log"
	"sort"

	"bridge-backend/internal/config"
)

// Registry resolves network names to adapters. Built once at startup so
// request paths never switch on family strings.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry constructs an adapter for every enabled network.
func NewRegistry(cfg *config.BlockchainConfig) (*Registry, error) {
	adapters := make(map[string]Adapter)

	for name, network := range cfg.Networks {
		if !network.Enabled {
			continue
		}
		nc := network

		var adapter Adapter
		var err error
		switch network.Family {
		case config.FamilyEVM:
			adapter, err = NewEVMAdapter(name, &nc)
		case config.FamilySolana:
			adapter, err = NewSolanaAdapter(name, &nc)
		case config.FamilyBitcoin:
			adapter, err = NewBitcoinAdapter(name, &nc)
		default:
			err = fmt.Errorf("unknown network family %q", network.Family)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build adapter for %s: %w", name, err)
		}

		adapters[name] = adapter
		log.Printf("✅ Network adapter ready: %s (%s)", name, network.Family)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no enabled networks")
	}

	return &Registry{adapters: adapters}, nil
}

// NewRegistryFromAdapters wires pre-built adapters. Used by tests.
func NewRegistryFromAdapters(adapters map[string]Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Get returns the adapter for a network.
func (r *Registry) Get(network string) (Adapter, error) {
	adapter, ok := r.adapters[network]
	if !ok {
		return nil, fmt.Errorf("network %s is not supported", network)
	}
	return adapter, nil
}

// Networks returns all registered network names, sorted.
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
