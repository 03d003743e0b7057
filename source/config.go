package source

import "fmt"

// Config is the configuration shared by the database-backed sources
type Config struct {
	// UseMemoryTables reads from the *_memory copies maintained by memsync
	// default: true
	UseMemoryTables bool `mapstructure:"use_memory_tables"`
	// Parallelism is the number of metric queries run at once
	// default: 2
	Parallelism int `mapstructure:"parallelism"`
	// MinMigrationCount drops province pairs with fewer movers
	// default: 5
	MinMigrationCount int `mapstructure:"min_migration_count"`
	// Province scopes the regional source
	// default: "山东省"
	Province string `mapstructure:"province"`
	// FlowLimit caps the inflow and outflow origins of the regional source
	// default: 10
	FlowLimit int `mapstructure:"flow_limit"`
	// YearLimit caps the by-year series of the regional source
	// default: 10
	YearLimit int `mapstructure:"year_limit"`
}

// DefaultConfig returns the default source configuration
func DefaultConfig() *Config {
	return &Config{
		UseMemoryTables:   true,
		Parallelism:       2,
		MinMigrationCount: 5,
		Province:          "山东省",
		FlowLimit:         10,
		YearLimit:         10,
	}
}

// MergeDefaults fills zero numeric and string fields from DefaultConfig in
// place and returns c. UseMemoryTables is taken as given.
func (c *Config) MergeDefaults() *Config {
	d := DefaultConfig()
	if c.Parallelism == 0 {
		c.Parallelism = d.Parallelism
	}
	if c.MinMigrationCount == 0 {
		c.MinMigrationCount = d.MinMigrationCount
	}
	if c.Province == "" {
		c.Province = d.Province
	}
	if c.FlowLimit == 0 {
		c.FlowLimit = d.FlowLimit
	}
	if c.YearLimit == 0 {
		c.YearLimit = d.YearLimit
	}
	return c
}

// Validate validates the source configuration
func (c *Config) Validate() error {
	if c.Parallelism < 1 {
		return fmt.Errorf("source: invalid config: parallelism must be at least 1")
	}
	if c.MinMigrationCount < 0 {
		return fmt.Errorf("source: invalid config: min_migration_count must not be negative")
	}
	if c.FlowLimit < 1 || c.YearLimit < 1 {
		return fmt.Errorf("source: invalid config: flow_limit and year_limit must be positive")
	}
	return nil
}

// Tables names the registry tables a source reads.
type Tables struct {
	Population string
	Deceased   string
	Marriage   string
}

// TablesFor returns the live or memory-table names.
func TablesFor(memory bool) Tables {
	t := Tables{
		Population: "population",
		Deceased:   "population_deceased",
		Marriage:   "marriage_info",
	}
	if memory {
		t.Population += "_memory"
		t.Deceased += "_memory"
		t.Marriage += "_memory"
	}
	return t
}
