// Package config provides application configuration management.
//
// The config package handles loading and validation of the service's
// configuration from the environment, with an optional YAML file underneath.
// It covers transport settings, execution engine limits (worker pool size,
// in-flight request ceiling, per-execution timeout) and the language runtime
// manifest. All values are read once at startup; there is no hot reload.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Pool size: %d\n", cfg.Engine.MaxWorkers)
package config
