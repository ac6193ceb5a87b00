// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Review        ReviewConfig       `mapstructure:"review"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	ListenAddr  string `mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// --- Review Pipeline Configuration ---

// ReviewConfig holds the tunables of the review workflow: per-level SLA
// durations, priority scoring caps, identifier allocation, and the sweeper.
type ReviewConfig struct {
	SLA        SLAConfig        `mapstructure:"sla"`
	Priority   PriorityConfig   `mapstructure:"priority"`
	Identifier IdentifierConfig `mapstructure:"identifier"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`

	// OperationTimeout bounds every engine transaction, in milliseconds.
	OperationTimeout int `mapstructure:"operation_timeout"`

	// DefaultChangeDeadlineDays is used when requestChanges passes no
	// explicit response deadline.
	DefaultChangeDeadlineDays int `mapstructure:"default_change_deadline_days"`
}

// SLAConfig is the static per-level deadline table, in days. Externally
// configurable but not runtime-mutable mid-cycle.
type SLAConfig struct {
	ConstituencyDays int `mapstructure:"constituency_days"`
	RegionalDays     int `mapstructure:"regional_days"`
	NationalDays     int `mapstructure:"national_days"`
}

// PriorityConfig holds the scorer's contribution caps. The cap values mirror
// the original program rules and are kept as configuration pending product
// confirmation.
type PriorityConfig struct {
	AgeMaxPoints         int `mapstructure:"age_max_points"`
	AgePointsPerDay      int `mapstructure:"age_points_per_day"`
	SmallFarmBonus       int `mapstructure:"small_farm_bonus"`
	SmallFarmFlockSize   int `mapstructure:"small_farm_flock_size"`
	LowRevenueBonus      int `mapstructure:"low_revenue_bonus"`
	LowRevenueThreshold  int `mapstructure:"low_revenue_threshold"`
	EligibilityMaxPoints int `mapstructure:"eligibility_max_points"`
	DeadlineMaxPoints    int `mapstructure:"deadline_max_points"`
	DeadlineWindowDays   int `mapstructure:"deadline_window_days"`
}

// IdentifierConfig controls permanent registration ID minting.
type IdentifierConfig struct {
	Prefix      string `mapstructure:"prefix"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type SweeperConfig struct {
	Interval int `mapstructure:"interval"` // milliseconds
}

// NotificationConfig holds settings for the notification dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	TemplateRegistryPath string `mapstructure:"template_registry_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
