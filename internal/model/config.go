package model

import "time"

// Config is the complete astrolabium configuration
type Config struct {
	Catalogues CataloguesConfig `yaml:"catalogues" mapstructure:"catalogues"`
	Parse      ParseConfig      `yaml:"parse" mapstructure:"parse"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Names      NamesConfig      `yaml:"names" mapstructure:"names"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CataloguesConfig locates the catalogue sources
type CataloguesConfig struct {
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`           // Downloaded catalogue files
	HipparcosURL string `yaml:"hipparcos_url" mapstructure:"hipparcos_url"` // hip2.dat, optionally gzipped
	WDSURL       string `yaml:"wds_url" mapstructure:"wds_url"`
	Orb6URL      string `yaml:"orb6_url" mapstructure:"orb6_url"`
}

// ParseConfig controls line parsing
type ParseConfig struct {
	Workers   int  `yaml:"workers" mapstructure:"workers"`       // Parallel chunk workers
	ChunkSize int  `yaml:"chunk_size" mapstructure:"chunk_size"` // Lines per job
	Strict    bool `yaml:"strict" mapstructure:"strict"`         // Abort on the first bad line
}

// HTTPConfig controls downloads and name-resolution requests
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	Retries       int           `yaml:"retries" mapstructure:"retries"`
	RatePerSecond float64       `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RetryBase     time.Duration `yaml:"retry_base" mapstructure:"retry_base"` // First backoff delay, doubled per attempt
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// NamesConfig controls canonical name resolution
type NamesConfig struct {
	File        string   `yaml:"file" mapstructure:"file"`                 // Local JSON name list
	Sources     []string `yaml:"sources" mapstructure:"sources"`           // Source priority, highest first
	IAUURL      string   `yaml:"iau_url" mapstructure:"iau_url"`           // IAU WGSN table page
	SPARQLURL   string   `yaml:"sparql_url" mapstructure:"sparql_url"`     // Wikidata query service
	WikidataAPI string   `yaml:"wikidata_api" mapstructure:"wikidata_api"` // wbgetentities endpoint
	BatchSize   int      `yaml:"batch_size" mapstructure:"batch_size"`

	// Wikidata items of the catalogues whose numbers are looked up
	CatalogueQIDs map[string]string `yaml:"catalogue_qids" mapstructure:"catalogue_qids"`
}

// CacheConfig controls the raw, entry and intermediate caches
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig locates the SQLite galaxy database
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig controls the Prometheus textfile output
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig mirrors logging.Config for the config file
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		Catalogues: CataloguesConfig{
			DataDir:      "~/.astrolabium/catalogues",
			HipparcosURL: "https://cdsarc.cds.unistra.fr/ftp/I/311/hip2.dat.gz",
			WDSURL:       "https://www.astro.gsu.edu/wds/Webtextfiles/wdsweb_summ2.txt",
			Orb6URL:      "https://www.astro.gsu.edu/wds/orb6/orb6orbits.txt",
		},
		Parse: ParseConfig{
			Workers:   4,
			ChunkSize: 4096,
		},
		HTTP: HTTPConfig{
			Timeout:       60 * time.Second,
			UserAgent:     "astrolabium/0.1 (+https://github.com/ppiankov/astrolabium)",
			RespectRobots: true,
			Retries:       3,
			RatePerSecond: 2,
			RetryBase:     time.Second,
			MaxBodyBytes:  256 << 20,
		},
		Names: NamesConfig{
			Sources:     []string{"iau", "wikidata", "catalogue"},
			IAUURL:      "https://www.iau.org/public/themes/naming_stars/",
			SPARQLURL:   "https://query.wikidata.org/sparql",
			WikidataAPI: "https://www.wikidata.org/w/api.php",
			BatchSize:   50,
			CatalogueQIDs: map[string]string{
				CatalogueHipparcos: "Q537199",
				CatalogueHD:        "Q111130",
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "~/.astrolabium/cache",
			TTL:     30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Path: "~/.astrolabium/galaxy.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
