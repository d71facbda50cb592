package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"qdbreport/pkg/contracts/domain"
)

// Environment names
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// Config represents the complete application configuration
type Config struct {
	Environment string           `yaml:"environment" validate:"required,oneof=dev test prod"`
	Reports     ReportsConfig    `yaml:"reports"`
	Recipients  RecipientsConfig `yaml:"recipients"`
	Exclusion   ExclusionConfig  `yaml:"exclusion"`
	Warehouse   WarehouseConfig  `yaml:"warehouse"`
	Directory   DirectoryConfig  `yaml:"directory"`
	Mail        MailConfig       `yaml:"mail"`
	Logging     LoggingConfig    `yaml:"logging"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Subcodes    []domain.Subcode `yaml:"subcodes" ignored:"true" validate:"dive"`
}

// ReportsConfig contains report layout and unit naming rules
type ReportsConfig struct {
	Dir                  string `yaml:"dir" validate:"required"`
	TopLevelUnitName     string `yaml:"top_level_unit_name" split_words:"true" validate:"required"`
	AllUnitsName         string `yaml:"all_units_name" split_words:"true" validate:"required"`
	ExcludedStaffName    string `yaml:"excluded_staff_name" split_words:"true"`
	LibraryMaterialsCode string `yaml:"library_materials_code" split_words:"true" validate:"required"`
}

// RecipientsConfig holds the default recipient sets per environment
type RecipientsConfig struct {
	Dev  []string `yaml:"dev" validate:"dive,email"`
	Prod []string `yaml:"prod" validate:"dive,email"`
}

// ExclusionConfig identifies the shared AD fund slot and the two units whose
// reports split it.
type ExclusionConfig struct {
	PrimaryUnitID   int    `yaml:"primary_unit_id" split_words:"true"`
	CompanionUnitID int    `yaml:"companion_unit_id" split_words:"true"`
	Account         string `yaml:"account"`
	CostCenter      string `yaml:"cost_center" split_words:"true"`
	Fund            string `yaml:"fund"`
}

// WarehouseConfig contains the financial warehouse connection
type WarehouseConfig struct {
	Driver       string        `yaml:"driver" validate:"required"`
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"query_timeout" split_words:"true"`
}

// DirectoryConfig locates the unit/recipient/account store
type DirectoryConfig struct {
	Path     string `yaml:"path" validate:"required"`
	SeedFile string `yaml:"seed_file" split_words:"true"`
}

// MailConfig contains SMTP delivery settings
type MailConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port" validate:"min=0,max=65535"`
	From          string        `yaml:"from" validate:"omitempty,email"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	HELO          string        `yaml:"helo"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute" split_words:"true" validate:"min=0"`
	Closer        string        `yaml:"closer"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Output   string `yaml:"output" validate:"omitempty,oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true"`
}

// TelemetryConfig toggles tracing and metrics output
type TelemetryConfig struct {
	TracingEnabled  bool   `yaml:"tracing_enabled" split_words:"true"`
	MetricsEnabled  bool   `yaml:"metrics_enabled" split_words:"true"`
	MetricsTextfile string `yaml:"metrics_textfile" split_words:"true"`
}

// Load builds the configuration from defaults, then the YAML file at path (or
// the first file found in the usual locations when path is empty), then QDB_*
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no envconfig defaults, so only variables that are set
	// override the file.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Relative paths written in
// the file are taken relative to the file's directory.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return err
	}
	base := filepath.Dir(filePath)
	dst := cfg.pathFields()
	for i, p := range fromFile.pathFields() {
		if isRelativePath(*p) {
			*dst[i] = filepath.Join(base, *p)
		}
	}
	return nil
}

// pathFields lists the filesystem paths in the config, in a fixed order.
func (c *Config) pathFields() []*string {
	return []*string{
		&c.Reports.Dir,
		&c.Directory.Path,
		&c.Directory.SeedFile,
		&c.Logging.FilePath,
		&c.Telemetry.MetricsTextfile,
	}
}

func isRelativePath(p string) bool {
	return p != "" && p != ":memory:" && !filepath.IsAbs(p)
}

// resolvePaths makes the remaining relative paths, from defaults or the
// environment, absolute against the working directory.
func (c *Config) resolvePaths() error {
	for _, p := range c.pathFields() {
		if !isRelativePath(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Exclusion.PrimaryUnitID != 0 && c.Exclusion.PrimaryUnitID == c.Exclusion.CompanionUnitID {
		return fmt.Errorf("exclusion primary and companion unit must differ: %d", c.Exclusion.PrimaryUnitID)
	}
	if len(c.DefaultRecipients()) == 0 {
		return fmt.Errorf("no default recipients configured for environment %q", c.Environment)
	}
	return nil
}

// DefaultRecipients returns the recipient set every report goes to: internal
// developers in dev, the business office everywhere else.
func (c *Config) DefaultRecipients() []string {
	if c.Environment == EnvDev {
		return c.Recipients.Dev
	}
	return c.Recipients.Prod
}

// SubcodeRegistry returns the configured registry, or the default table.
func (c *Config) SubcodeRegistry() *domain.SubcodeRegistry {
	if len(c.Subcodes) == 0 {
		return domain.NewSubcodeRegistry(domain.DefaultSubcodes())
	}
	return domain.NewSubcodeRegistry(c.Subcodes)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"qdbreport.yaml",
		"configs/qdbreport.yaml",
		"../configs/qdbreport.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Environment: EnvDev,
		Reports: ReportsConfig{
			Dir:                  DefaultReportsDir,
			TopLevelUnitName:     DefaultTopLevelUnitName,
			AllUnitsName:         DefaultAllUnitsName,
			ExcludedStaffName:    DefaultExcludedStaffName,
			LibraryMaterialsCode: DefaultLibraryMaterialsCode,
		},
		Recipients: RecipientsConfig{
			Dev:  []string{"joshuagomez@library.ucla.edu", "akohler@library.ucla.edu"},
			Prod: []string{"doris@library.ucla.edu", "jian@library.ucla.edu"},
		},
		Exclusion: ExclusionConfig{
			PrimaryUnitID:   27,
			CompanionUnitID: 35,
			Account:         "432975",
			CostCenter:      "AD",
			Fund:            "19933",
		},
		Warehouse: WarehouseConfig{
			Driver:       "sqlserver",
			QueryTimeout: 2 * time.Minute,
		},
		Directory: DirectoryConfig{
			Path: DefaultDirectoryPath,
		},
		Mail: MailConfig{
			Port:          25,
			Timeout:       30 * time.Second,
			RatePerMinute: 30,
			Closer:        DefaultMessageCloser,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/qdbreport.log",
		},
	}
}
