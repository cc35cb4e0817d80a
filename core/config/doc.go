// Package config loads typed configuration from environment variables.
//
// Values are parsed with caarlos0/env; a .env file in the working directory
// is loaded once on first use via godotenv. Each struct type is parsed once
// and cached:
//
//	var cfg server.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Deployment descriptors (hosts, applications, handler mappings) are not
// environment configuration and live in package descriptor.
package config
