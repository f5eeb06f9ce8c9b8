package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/geoload/internal/config"
)

// loadProjectConfig loads .env into the environment and then the YAML config.
// A missing default config file is not an error; a missing file named
// explicitly with --config is.
func loadProjectConfig(path string, explicit bool) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	projectCfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return projectCfg, nil
}

// resolveEffectiveTimeout returns the effective timeout, preferring geoload.yaml if the flag wasn't set.
func resolveEffectiveTimeout(cmd *cobra.Command, projectCfg *config.ProjectConfig, flagTimeout time.Duration) time.Duration {
	if projectCfg != nil && projectCfg.Timeout != "" && !cmd.Flags().Changed("timeout") {
		return projectCfg.TimeoutDuration()
	}
	return flagTimeout
}

// stringSetting returns the flag value if the flag was set, else the file value, else the default.
func stringSetting(cmd *cobra.Command, name, flagValue, fileValue, def string) string {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	if fileValue != "" {
		return fileValue
	}
	if flagValue != "" {
		return flagValue
	}
	return def
}

func intSetting(cmd *cobra.Command, name string, flagValue, fileValue int) int {
	if cmd.Flags().Changed(name) || fileValue == 0 {
		return flagValue
	}
	return fileValue
}

func boolSetting(cmd *cobra.Command, name string, flagValue, fileValue bool) bool {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return flagValue || fileValue
}
