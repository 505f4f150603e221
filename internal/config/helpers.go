package config

import (
	"fmt"

	"sigex/pkg/confkit"
	"sigex/pkg/exchange"
)

// MustLoadExchange loads etc/exchange.yaml from the project root and panics
// on error. It isolates exchange config so tools that only need the provider
// registry skip the rest of the application config.
func MustLoadExchange() *exchange.Config {
	path := confkit.MustProjectPath("etc/exchange.yaml")
	cfg, err := exchange.LoadConfig(path)
	if err != nil {
		panic(fmt.Errorf("load exchange config %s: %w", path, err))
	}
	return cfg
}
