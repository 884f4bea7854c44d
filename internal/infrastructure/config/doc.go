// Package config handles loading and validating logwarden configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (broker passwords) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - An enabled command output stage requires a non-empty allow-list
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load; parsing rules and the command
//     allow-list are immutable for the process lifetime
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.TopicPrefix)
package config
