package config

import (
	"os"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/escrow-ledger"
	"github.com/totegamma/escrow-ledger/internal/domain"
)

type Config struct {
	NodeInfo NodeInfo       `yaml:"nodeInfo"`
	Server   Server         `yaml:"server"`
	Genesis  []GenesisEntry `yaml:"genesis"`
}

type NodeInfo struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`

	// ---
	Address string
}

type Server struct {
	Listen        string `yaml:"listen"`
	Store         string `yaml:"store"` // postgres, memory
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

// GenesisEntry credits an identity when the ledger starts empty.
type GenesisEntry struct {
	Address string `yaml:"address"`
	Amount  uint64 `yaml:"amount"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	if config.Server.Listen == "" {
		config.Server.Listen = ":8000"
	}
	if config.Server.Store == "" {
		config.Server.Store = "postgres"
	}

	address, err := escrow.PrivKeyToAddr(config.NodeInfo.PrivateKey, escrow.IdentityPrefix)
	if err != nil {
		return Config{}, errors.Wrap(err, "invalid node private key")
	}

	config.NodeInfo.Address = address

	return config, nil
}

// Domain returns the subset of the config the request path needs.
func (c Config) Domain() domain.Config {
	return domain.Config{
		FQDN:       c.NodeInfo.FQDN,
		PrivateKey: c.NodeInfo.PrivateKey,
		Address:    c.NodeInfo.Address,
	}
}

func (c Config) GenesisBalances() map[string]uint64 {
	balances := make(map[string]uint64, len(c.Genesis))
	for _, g := range c.Genesis {
		balances[g.Address] += g.Amount
	}
	return balances
}
