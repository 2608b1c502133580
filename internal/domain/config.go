package domain

type Config struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	Address    string `yaml:"address"`
}
