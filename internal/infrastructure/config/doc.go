// Package config handles loading and validating IPS Core configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables (DB_HOST, DB_PORT, DB_DATABASE,
//     DB_USER, DB_PASSWORD and the IPS_* family)
//   - Validation of required fields
//   - Default value handling
//
// Configuration is loaded once at startup and passed explicitly to the
// components that need it; nothing reads the environment after Load returns.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Host)
package config
