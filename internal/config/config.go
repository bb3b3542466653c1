package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	defaults = map[string]interface{}{
		"verbose":      false,
		"api_port":     8080,
		"endpoint":     "",
		"storage_path": defaultPath("queue"),
		"secrets_path": defaultPath("secrets.yaml"),
	}
)

func init() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("didmsg")
	viper.AddConfigPath("/etc/didmsg/")
	viper.AddConfigPath("$HOME/.didmsg")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("DIDMSG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logrus.New().Warnf("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	return &Config{
		Verbose:     viper.GetBool("verbose"),
		APIPort:     viper.GetInt("api_port"),
		Endpoint:    viper.GetString("endpoint"),
		StoragePath: viper.GetString("storage_path"),
		SecretsPath: viper.GetString("secrets_path"),
	}, nil
}

type Config struct {
	Verbose     bool
	APIPort     int
	Endpoint    string
	StoragePath string
	SecretsPath string
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}

	return filepath.Join(home, ".didmsg", name)
}
