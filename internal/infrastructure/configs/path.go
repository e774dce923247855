package configs

import (
	"flag"
	"os"

	"github.com/auxroom/auxroom/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file location from the
// --config flag, the AUXROOM_CONFIG env var, or a set of conventional
// candidates. An empty result means "defaults only".
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("AUXROOM_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"/etc/auxroom/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
