package config

// ServiceConfig is the configuration lifecycle every section implements.
type ServiceConfig interface {
	// ApplyDefaults fills zero values with defaults.
	ApplyDefaults()

	// ApplyEnvOverrides applies environment variable overrides.
	ApplyEnvOverrides()

	// ResolvePaths resolves relative paths. configDir anchors config-related
	// paths, dataDir anchors runtime data such as logs and database files.
	ResolvePaths(configDir, dataDir string)

	// Validate returns an error if the section is unusable.
	Validate() error
}

// ApplyServiceConfigs runs the lifecycle on each section in order and stops
// at the first validation error.
func ApplyServiceConfigs(configDir, dataDir string, configs ...ServiceConfig) error {
	for _, cfg := range configs {
		cfg.ApplyDefaults()
		cfg.ApplyEnvOverrides()
		cfg.ResolvePaths(configDir, dataDir)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	return nil
}
