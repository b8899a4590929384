// Package config handles loading and validating HireHub Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HIREHUB_* environment variables
//   - Validation of required fields, guard mode and auth provider
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret should be set via HIREHUB_JWT_SECRET, never committed
//   - security.guard.mode "permissive" lets protected pages render while a
//     redirect is pending; it exists for local UI work only
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.App.Name)
package config
