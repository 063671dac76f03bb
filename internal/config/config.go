package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

// Sink names accepted by SINK.
const (
	SinkJSONL  = "jsonl"
	SinkKafka  = "kafka"
	SinkSQLite = "sqlite"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	Sink         string
	OutputPath   string
	PrettyOutput bool
	SQLitePath   string

	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Audit vocabulary.
	StreetVocabularyPath string
	PostcodePattern      string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	pretty, err := parseBool("PRETTY_OUTPUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Sink:                 sharedcfg.EnvOrDefault("SINK", SinkJSONL),
		OutputPath:           os.Getenv("OUTPUT_PATH"),
		PrettyOutput:         pretty,
		SQLitePath:           sharedcfg.EnvOrDefault("SQLITE_PATH", "osm.db"),
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:       sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "osm-records"),
		HTTPAddr:             os.Getenv("HTTP_ADDR"),
		LogLevel:             sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:      shutdownTimeout,
		BatchSize:            batchSize,
		BatchFlushInterval:   flushInterval,
		StreetVocabularyPath: os.Getenv("STREET_VOCABULARY"),
		PostcodePattern:      sharedcfg.EnvOrDefault("POSTCODE_PATTERN", domain.DefaultPostcodePattern),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Commands call it again after
// applying flag overrides.
func (c *Config) Validate() error {
	switch c.Sink {
	case SinkJSONL, SinkSQLite:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when SINK is kafka")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required when SINK is kafka")
		}
	default:
		return fmt.Errorf("invalid SINK %q: want jsonl, kafka, or sqlite", c.Sink)
	}
	if c.Sink == SinkSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required when SINK is sqlite")
	}
	if _, err := regexp.Compile(c.PostcodePattern); err != nil {
		return fmt.Errorf("invalid POSTCODE_PATTERN: %w", err)
	}
	return nil
}

// PostcodeRegexp compiles the configured postcode pattern.
func (c *Config) PostcodeRegexp() *regexp.Regexp {
	return regexp.MustCompile(c.PostcodePattern)
}

// StreetVocabulary returns the vocabulary from STREET_VOCABULARY, or the
// built-in one when unset.
func (c *Config) StreetVocabulary() (*domain.StreetVocabulary, error) {
	if c.StreetVocabularyPath == "" {
		return domain.DefaultStreetVocabulary(), nil
	}
	return LoadVocabulary(c.StreetVocabularyPath)
}

// vocabularyFile is the YAML layout of a street vocabulary.
type vocabularyFile struct {
	Expected   []string          `yaml:"expected"`
	Mapping    map[string]string `yaml:"mapping"`
	Directions []string          `yaml:"directions"`
}

// LoadVocabulary reads a YAML street vocabulary:
//
//	expected: [Street, Avenue]
//	mapping: {St.: Street, Ave: Avenue}
//	directions: [N, North, E, East, South, West, W]
//
// Sections left out of the file fall back to the built-in vocabulary. Mapping
// keys that differ only in case must agree on their value.
func LoadVocabulary(path string) (*domain.StreetVocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read street vocabulary: %w", err)
	}

	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse street vocabulary %s: %w", path, err)
	}

	if f.Expected == nil {
		f.Expected = domain.DefaultExpectedSuffixes()
	}
	if f.Mapping == nil {
		f.Mapping = domain.DefaultSuffixMapping()
	}
	if f.Directions == nil {
		f.Directions = domain.DefaultDirections()
	}

	v, err := domain.NewStreetVocabulary(f.Expected, f.Mapping, f.Directions)
	if err != nil {
		return nil, fmt.Errorf("street vocabulary %s: %w", path, err)
	}
	return v, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
