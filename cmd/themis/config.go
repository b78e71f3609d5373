package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/themis-legal/themis/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Themis configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/themis/config.yaml
Project-specific overrides can be placed in .themis.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("server.host: %s\n", cfg.Server.Host)
	fmt.Printf("server.port: %d\n", cfg.Server.Port)
	fmt.Printf("server.body_limit: %s\n", cfg.Server.BodyLimit)
	fmt.Printf("server.cors_origins: %s\n", strings.Join(cfg.Server.CORSOrigins, ","))
	fmt.Printf("storage.path: %s\n", orDefault(cfg.Storage.Path, "(in-memory)"))
	fmt.Printf("storage.cache_ttl: %s\n", cfg.Storage.CacheTTL)
	fmt.Printf("retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("retry.base_delay: %s\n", cfg.Retry.BaseDelay)
	fmt.Printf("retry.max_delay: %s\n", cfg.Retry.MaxDelay)
	fmt.Printf("breaker.failure_threshold: %d\n", cfg.Breaker.FailureThreshold)
	fmt.Printf("breaker.success_threshold: %d\n", cfg.Breaker.SuccessThreshold)
	fmt.Printf("breaker.timeout: %s\n", cfg.Breaker.Timeout)
	fmt.Printf("async.max_concurrent: %d\n", cfg.Async.MaxConcurrent)
	fmt.Printf("async.webhook_timeout: %s\n", cfg.Async.WebhookTimeout)
	fmt.Printf("async.job_retention: %s\n", cfg.Async.JobRetention)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "server.host":
		return cfg.Server.Host, nil
	case "server.port":
		return strconv.Itoa(cfg.Server.Port), nil
	case "server.body_limit":
		return cfg.Server.BodyLimit, nil
	case "server.cors_origins":
		return strings.Join(cfg.Server.CORSOrigins, ","), nil
	case "storage.path":
		return cfg.Storage.Path, nil
	case "storage.cache_ttl":
		return cfg.Storage.CacheTTL.String(), nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.base_delay":
		return cfg.Retry.BaseDelay.String(), nil
	case "retry.max_delay":
		return cfg.Retry.MaxDelay.String(), nil
	case "breaker.failure_threshold":
		return strconv.Itoa(cfg.Breaker.FailureThreshold), nil
	case "breaker.success_threshold":
		return strconv.Itoa(cfg.Breaker.SuccessThreshold), nil
	case "breaker.timeout":
		return cfg.Breaker.Timeout.String(), nil
	case "async.max_concurrent":
		return strconv.Itoa(cfg.Async.MaxConcurrent), nil
	case "async.webhook_timeout":
		return cfg.Async.WebhookTimeout.String(), nil
	case "async.job_retention":
		return cfg.Async.JobRetention.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		// ${VAR} references are resolved at load time, not validated here.
		if !strings.HasPrefix(value, "${") {
			if err := config.ValidateAPIKey(value); err != nil {
				return fmt.Errorf("invalid value for anthropic.api_key: %w", err)
			}
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "server.host":
		cfg.Server.Host = value
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for server.port: %w", err)
		}
		cfg.Server.Port = n
	case "server.body_limit":
		cfg.Server.BodyLimit = value
	case "server.cors_origins":
		cfg.Server.CORSOrigins = splitOrigins(value)
	case "storage.path":
		cfg.Storage.Path = value
	case "storage.cache_ttl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for storage.cache_ttl: %w", err)
		}
		cfg.Storage.CacheTTL = d
	case "retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry.max_attempts: %w", err)
		}
		cfg.Retry.MaxAttempts = n
	case "retry.base_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry.base_delay: %w", err)
		}
		cfg.Retry.BaseDelay = d
	case "retry.max_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for retry.max_delay: %w", err)
		}
		cfg.Retry.MaxDelay = d
	case "breaker.failure_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for breaker.failure_threshold: %w", err)
		}
		cfg.Breaker.FailureThreshold = n
	case "breaker.success_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for breaker.success_threshold: %w", err)
		}
		cfg.Breaker.SuccessThreshold = n
	case "breaker.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for breaker.timeout: %w", err)
		}
		cfg.Breaker.Timeout = d
	case "async.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for async.max_concurrent: %w", err)
		}
		cfg.Async.MaxConcurrent = n
	case "async.webhook_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for async.webhook_timeout: %w", err)
		}
		cfg.Async.WebhookTimeout = d
	case "async.job_retention":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for async.job_retention: %w", err)
		}
		cfg.Async.JobRetention = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func splitOrigins(value string) []string {
	parts := strings.Split(value, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
