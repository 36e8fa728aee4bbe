package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "swarm.max_parallel")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex validates branch prefix characters
// Branch names should start with alphanumeric and can contain alphanumeric, hyphen, underscore
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// envVarRegex validates environment variable names
var envVarRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Branch config
	errors = append(errors, c.validateBranch()...)

	// Validate Profile config
	errors = append(errors, c.validateProfile()...)

	// Validate Swarm config
	errors = append(errors, c.validateSwarm()...)

	// Validate Sandbox config
	errors = append(errors, c.validateSandbox()...)

	// Validate Provider config
	errors = append(errors, c.validateProvider()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateBranch validates the BranchConfig
func (c *Config) validateBranch() []ValidationError {
	var errors []ValidationError

	if c.Branch.Prefix == "" {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "cannot be empty",
		})
	} else if !branchPrefixRegex.MatchString(c.Branch.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: "must start with a letter and contain only alphanumeric characters, hyphens, or underscores",
		})
	}

	// Git branch names have length limits
	const maxBranchPrefixLength = 50
	if len(c.Branch.Prefix) > maxBranchPrefixLength {
		errors = append(errors, ValidationError{
			Field:   "branch.prefix",
			Value:   c.Branch.Prefix,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", maxBranchPrefixLength),
		})
	}

	return errors
}

// validateProfile validates the ProfileConfig
func (c *Config) validateProfile() []ValidationError {
	var errors []ValidationError

	if c.Profile.Default == "" {
		errors = append(errors, ValidationError{
			Field:   "profile.default",
			Value:   c.Profile.Default,
			Message: "cannot be empty",
		})
	}

	// Path validation - if set, check for invalid characters
	if c.Profile.Path != "" {
		path := c.Profile.Path

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "profile.path",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "profile.path",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateSwarm validates the SwarmConfig
func (c *Config) validateSwarm() []ValidationError {
	var errors []ValidationError

	const minMaxParallel = 1
	const maxMaxParallel = 32

	if c.Swarm.MaxParallel < minMaxParallel {
		errors = append(errors, ValidationError{
			Field:   "swarm.max_parallel",
			Value:   c.Swarm.MaxParallel,
			Message: fmt.Sprintf("must be at least %d", minMaxParallel),
		})
	}
	if c.Swarm.MaxParallel > maxMaxParallel {
		errors = append(errors, ValidationError{
			Field:   "swarm.max_parallel",
			Value:   c.Swarm.MaxParallel,
			Message: fmt.Sprintf("exceeds maximum of %d", maxMaxParallel),
		})
	}

	return errors
}

// validateSandbox validates the SandboxConfig
func (c *Config) validateSandbox() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Sandbox.Tool) == "" {
		errors = append(errors, ValidationError{
			Field:   "sandbox.tool",
			Value:   c.Sandbox.Tool,
			Message: "cannot be empty",
		})
	}

	return errors
}

// validateProvider validates the ProviderConfig
func (c *Config) validateProvider() []ValidationError {
	var errors []ValidationError

	if c.Provider.APIBase == "" {
		errors = append(errors, ValidationError{
			Field:   "provider.api_base",
			Value:   c.Provider.APIBase,
			Message: "cannot be empty",
		})
	} else if !strings.HasPrefix(c.Provider.APIBase, "http://") && !strings.HasPrefix(c.Provider.APIBase, "https://") {
		errors = append(errors, ValidationError{
			Field:   "provider.api_base",
			Value:   c.Provider.APIBase,
			Message: "must start with http:// or https://",
		})
	}

	if c.Provider.Model == "" {
		errors = append(errors, ValidationError{
			Field:   "provider.model",
			Value:   c.Provider.Model,
			Message: "cannot be empty",
		})
	}

	if c.Provider.APIKeyEnv != "" && !envVarRegex.MatchString(c.Provider.APIKeyEnv) {
		errors = append(errors, ValidationError{
			Field:   "provider.api_key_env",
			Value:   c.Provider.APIKeyEnv,
			Message: "must be a valid environment variable name",
		})
	}

	// Timeout validation
	const minTimeoutSeconds = 1
	const maxTimeoutSeconds = 600 // 10 minutes

	if c.Provider.TimeoutSeconds < minTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "provider.timeout_seconds",
			Value:   c.Provider.TimeoutSeconds,
			Message: fmt.Sprintf("must be at least %d", minTimeoutSeconds),
		})
	}
	if c.Provider.TimeoutSeconds > maxTimeoutSeconds {
		errors = append(errors, ValidationError{
			Field:   "provider.timeout_seconds",
			Value:   c.Provider.TimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds", maxTimeoutSeconds),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Dir validation - if set, check for invalid characters
	if c.Logging.Dir != "" {
		dir := c.Logging.Dir

		if strings.ContainsRune(dir, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "logging.dir",
				Value:   dir,
				Message: "path contains invalid null character",
			})
		}

		const maxPathLength = 4096
		if len(dir) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "logging.dir",
				Value:   dir,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}
