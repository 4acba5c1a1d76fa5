// Package config handles loading and validating Gray Logic Appliances configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The cloud access token should be set via GRAYLOGIC_CLOUD_TOKEN
//   - The config file should have restricted permissions (0600)
//   - CloudConfig redacts the token in String() and JSON output
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Cloud)
package config
