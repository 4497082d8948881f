package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Credentials holds the resolved warehouse connection parameters.
// Account, User and Password are required; the rest default server-side.
type Credentials struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// profileOutput mirrors one output block of a dbt-style profiles.yml.
type profileOutput struct {
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Role      string `yaml:"role"`
}

type profileEntry struct {
	Target  string                   `yaml:"target"`
	Outputs map[string]profileOutput `yaml:"outputs"`
}

// envVarPattern matches the {{ env_var('NAME') }} placeholder syntax used
// in profiles.yml.
var envVarPattern = regexp.MustCompile(`\{\{\s*env_var\(\s*'([^']+)'\s*\)\s*\}\}`)

// resolvePlaceholder substitutes env_var placeholders against the
// environment. Values without a placeholder pass through unchanged.
func resolvePlaceholder(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// LoadCredentials resolves warehouse credentials from a profiles file,
// falling back to SNOWFLAKE_* environment variables when the file is absent
// or incomplete. It fails fast with the full list of missing fields.
func LoadCredentials(profilesPath, profileName string) (*Credentials, error) {
	if creds, ok := credentialsFromProfiles(profilesPath, profileName); ok {
		return creds, nil
	}
	return credentialsFromEnv()
}

func credentialsFromProfiles(path, profileName string) (*Credentials, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var profiles map[string]profileEntry
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, false
	}

	profile, ok := profiles[profileName]
	if !ok {
		return nil, false
	}
	target := profile.Target
	if target == "" {
		target = "dev"
	}
	out, ok := profile.Outputs[target]
	if !ok {
		return nil, false
	}

	creds := &Credentials{
		Account:   resolvePlaceholder(out.Account),
		User:      resolvePlaceholder(out.User),
		Password:  resolvePlaceholder(out.Password),
		Warehouse: resolvePlaceholder(out.Warehouse),
		Database:  resolvePlaceholder(out.Database),
		Schema:    resolvePlaceholder(out.Schema),
		Role:      resolvePlaceholder(out.Role),
	}
	if creds.Account == "" || creds.User == "" || creds.Password == "" {
		return nil, false
	}
	if creds.Warehouse == "" {
		creds.Warehouse = "COMPUTE_WH"
	}
	return creds, true
}

func credentialsFromEnv() (*Credentials, error) {
	creds := &Credentials{
		Account:   os.Getenv("SNOWFLAKE_ACCOUNT"),
		User:      os.Getenv("SNOWFLAKE_USER"),
		Password:  os.Getenv("SNOWFLAKE_PASSWORD"),
		Warehouse: os.Getenv("SNOWFLAKE_WAREHOUSE"),
		Database:  os.Getenv("SNOWFLAKE_DATABASE"),
		Schema:    os.Getenv("SNOWFLAKE_SCHEMA"),
		Role:      os.Getenv("SNOWFLAKE_ROLE"),
	}
	if creds.Warehouse == "" {
		creds.Warehouse = "COMPUTE_WH"
	}

	var missing []string
	if creds.Account == "" {
		missing = append(missing, "SNOWFLAKE_ACCOUNT")
	}
	if creds.User == "" {
		missing = append(missing, "SNOWFLAKE_USER")
	}
	if creds.Password == "" {
		missing = append(missing, "SNOWFLAKE_PASSWORD")
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{
			Message: "could not resolve warehouse credentials from profiles file or environment",
			Missing: missing,
		}
	}
	return creds, nil
}

// Validate checks that required credential fields are present.
func (c *Credentials) Validate() error {
	var missing []string
	if c.Account == "" {
		missing = append(missing, "account")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Message: "incomplete credentials", Missing: missing}
	}
	return nil
}

// String redacts the password so credentials can be logged safely.
func (c *Credentials) String() string {
	return fmt.Sprintf("account=%s user=%s warehouse=%s database=%s schema=%s role=%s",
		c.Account, c.User, c.Warehouse, c.Database, c.Schema, c.Role)
}
