// Package config loads the YAML configuration shared by every
// neo4j-inventory command: the Neo4j connection, the graph Definition, the
// variable rules, the listing cache and logging.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	ansiblegraph "github.com/ntoofu/neo4j-ansible-inventory"
	"github.com/ntoofu/neo4j-ansible-inventory/naming"
	"github.com/ntoofu/neo4j-ansible-inventory/varrule"
)

// DefaultPath is the configuration file read when no path is given.
const DefaultPath = "config.yml"

// PasswordEnv overrides neo4j.password from the file.
const PasswordEnv = "NEO4J_PASSWORD"

// ErrInvalidConfig indicates a configuration file with unusable values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the parsed configuration file.
type Config struct {
	Neo4j      Neo4jConfig      `yaml:"neo4j"`
	Definition DefinitionConfig `yaml:"definition"`
	VarsRules  []VarsRule       `yaml:"vars_rules,omitempty"`
	Cache      *CacheConfig     `yaml:"cache,omitempty"`
	Log        LogConfig        `yaml:"log"`
}

// Neo4jConfig holds the connection settings.
type Neo4jConfig struct {
	// URI is the bolt or neo4j URI. When empty it is built from Host and
	// BoltPort.
	URI      string `yaml:"uri,omitempty"`
	Host     string `yaml:"host,omitempty"`
	BoltPort int    `yaml:"bolt_port,omitempty"`

	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`

	// ConnectTimeout is a Go duration string (e.g., "10s").
	// Default: 10s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
}

// GetURI returns the connection URI, defaulting to bolt://localhost:7687.
func (n *Neo4jConfig) GetURI() string {
	if n.URI != "" {
		return n.URI
	}
	host := n.Host
	if host == "" {
		host = "localhost"
	}
	port := n.BoltPort
	if port == 0 {
		port = 7687
	}
	return "bolt://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// GetConnectTimeout parses the connect timeout, returning 10s when unset
// or invalid.
func (n *Neo4jConfig) GetConnectTimeout() time.Duration {
	if n.ConnectTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// NeedsPassword reports whether a user is set without any password.
func (n *Neo4jConfig) NeedsPassword() bool {
	return n.User != "" && n.Password == ""
}

// DefinitionConfig names the persisted graph schema. Empty fields take the
// ansiblegraph defaults.
type DefinitionConfig struct {
	RepresentingLabel string `yaml:"representing_label,omitempty"`
	RepresentingName  string `yaml:"representing_name,omitempty"`
	OwnershipType     string `yaml:"ownership_type,omitempty"`
	ContainmentType   string `yaml:"containment_type,omitempty"`
	VarsLabel         string `yaml:"vars_label,omitempty"`
	HostLabel         string `yaml:"host_label,omitempty"`
	GroupLabel        string `yaml:"group_label,omitempty"`

	// MaxPathDepth bounds host lookups. Zero means unbounded.
	MaxPathDepth int `yaml:"max_path_depth,omitempty"`
}

// VarsRule binds one matcher to one built-in extractor.
type VarsRule struct {
	// Name and Label are regular expressions anchored at the start.
	// Default: ".*"
	Name  string `yaml:"name,omitempty"`
	Label string `yaml:"label,omitempty"`

	// When is an optional CEL expression over name and label.
	When string `yaml:"when,omitempty"`

	// Extractor is "all" or "select". Default: "all"
	Extractor string `yaml:"extractor,omitempty"`

	// Keys lists the variables kept by "select".
	Keys []string `yaml:"keys,omitempty"`
}

// CacheConfig enables the Redis listing cache.
type CacheConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string `yaml:"url"`

	// TTL is a Go duration string. Default: 5m
	TTL string `yaml:"ttl,omitempty"`

	// Prefix namespaces cache keys. Default: "neo4j-inventory"
	Prefix string `yaml:"prefix,omitempty"`
}

// GetTTL parses the TTL, returning 5m when unset or invalid.
func (c *CacheConfig) GetTTL() time.Duration {
	if c == nil || c.TTL == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetPrefix returns the key prefix or the default value.
func (c *CacheConfig) GetPrefix() string {
	if c == nil || c.Prefix == "" {
		return "neo4j-inventory"
	}
	return c.Prefix
}

// Enabled reports whether a cache is configured.
func (c *CacheConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

// LogConfig selects the log handler.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: warn
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty"`
}

// GetLevel returns the slog level, defaulting to warn so that inventory
// runs stay quiet.
func (l *LogConfig) GetLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// GetFormat returns the handler format or the default value.
func (l *LogConfig) GetFormat() string {
	if l.Format == "" {
		return "text"
	}
	return strings.ToLower(l.Format)
}

// Load reads and parses a configuration file and applies the password
// override from the environment. A missing file at DefaultPath yields the
// default configuration.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, os.ErrNotExist):
		data = nil
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration YAML, applies the environment override and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if pw, ok := os.LookupEnv(PasswordEnv); ok && pw != "" {
		cfg.Neo4j.Password = pw
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Neo4j.BoltPort < 0 || c.Neo4j.BoltPort > 65535 {
		add("neo4j.bolt_port %d is out of range", c.Neo4j.BoltPort)
	}
	if c.Neo4j.URI != "" && (c.Neo4j.Host != "" || c.Neo4j.BoltPort != 0) {
		add("neo4j.uri cannot be combined with neo4j.host or neo4j.bolt_port")
	}
	if c.Neo4j.ConnectTimeout != "" {
		if _, err := time.ParseDuration(c.Neo4j.ConnectTimeout); err != nil {
			add("neo4j.connect_timeout: %v", err)
		}
	}

	if c.Definition.MaxPathDepth < 0 {
		add("definition.max_path_depth must not be negative")
	}

	for i, r := range c.VarsRules {
		switch r.Extractor {
		case "", varrule.ExtractorAll:
			if len(r.Keys) > 0 {
				add("vars_rules[%d]: keys are only used by the %q extractor", i, varrule.ExtractorSelect)
			}
		case varrule.ExtractorSelect:
			if len(r.Keys) == 0 {
				add("vars_rules[%d]: extractor %q needs keys", i, varrule.ExtractorSelect)
			}
		default:
			add("vars_rules[%d]: unknown extractor %q", i, r.Extractor)
		}
	}

	if c.Cache != nil {
		if c.Cache.URL == "" {
			add("cache.url is required when cache is set")
		}
		if c.Cache.TTL != "" {
			if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
				add("cache.ttl: %v", err)
			}
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		add("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format %q is not one of text, json", c.Log.Format)
	}

	return result.ErrorOrNil()
}

// BuildDefinition builds the graph Definition, compiling every variable rule.
// Invalid patterns and expressions fail here rather than during a pass.
func (c *Config) BuildDefinition() (*ansiblegraph.Definition, error) {
	def := ansiblegraph.DefaultDefinition()
	d := c.Definition

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&def.RepresentingLabel, d.RepresentingLabel)
	setIf(&def.RepresentingName, d.RepresentingName)
	setIf(&def.OwnershipType, d.OwnershipType)
	setIf(&def.ContainmentType, d.ContainmentType)
	setIf(&def.BagLabel, d.VarsLabel)
	def.MaxPathDepth = d.MaxPathDepth

	rule := naming.DefaultRule()
	setIf(&rule.HostLabel, d.HostLabel)
	setIf(&rule.GroupLabel, d.GroupLabel)
	def.Naming = rule

	if len(c.VarsRules) > 0 {
		reg := varrule.NewRegistry()
		for i, r := range c.VarsRules {
			if err := registerRule(reg, r); err != nil {
				return nil, fmt.Errorf("vars_rules[%d]: %w", i, err)
			}
		}
		def.Vars = reg
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func registerRule(reg *varrule.Registry, r VarsRule) error {
	name, label := r.Name, r.Label
	if name == "" {
		name = ".*"
	}
	if label == "" {
		label = ".*"
	}

	var opts []varrule.MatcherOption
	if r.When != "" {
		opts = append(opts, varrule.WithExpression(r.When))
	}
	m, err := varrule.NewMatcher(name, label, opts...)
	if err != nil {
		return err
	}

	ext, err := varrule.Lookup(r.Extractor, r.Keys)
	if err != nil {
		return err
	}
	return reg.Register(m, ext)
}
