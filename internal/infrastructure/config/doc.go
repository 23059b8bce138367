// Package config handles loading and validating storefront-auth configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with STOREFRONT_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret, API key and mail/broker credentials should be set via
//     environment variables (or a .env file loaded by the binary)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.App.Name)
package config
