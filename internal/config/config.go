package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string         `json:"log_level" yaml:"log_level"`
	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog"`
	Scoring  ScoringConfig  `json:"scoring" yaml:"scoring"`
	Trend    TrendConfig    `json:"trend" yaml:"trend"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Rules    RulesConfig    `json:"rules" yaml:"rules"`
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	API      APIConfig      `json:"api" yaml:"api"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Alerts   AlertsConfig   `json:"alerts" yaml:"alerts"`
	History  HistoryConfig  `json:"history" yaml:"history"`
}

type CatalogConfig struct {
	Path string `json:"path" yaml:"path"`
	// Weights maps category id to its share of the total score. Categories
	// absent from the map split the remaining weight evenly.
	Weights map[string]float64 `json:"weights" yaml:"weights"`
}

type PatternBonus struct {
	Contains string  `json:"contains" yaml:"contains"`
	Bonus    float64 `json:"bonus" yaml:"bonus"`
}

type ScoringConfig struct {
	PriorityBase    map[string]float64 `json:"priority_base" yaml:"priority_base"`
	DefaultBase     float64            `json:"default_base" yaml:"default_base"`
	InactiveFactor  float64            `json:"inactive_factor" yaml:"inactive_factor"`
	PriorityWeights map[string]float64 `json:"priority_weights" yaml:"priority_weights"`
	DefaultWeight   float64            `json:"default_weight" yaml:"default_weight"`
	PatternBonuses  []PatternBonus     `json:"pattern_bonuses" yaml:"pattern_bonuses"`
	Levels          LevelThresholds    `json:"levels" yaml:"levels"`
}

// LevelThresholds are the ascending risk-level cut points over the total
// score: below Medium is low, below High is medium, below Critical is high.
type LevelThresholds struct {
	Medium   float64 `json:"medium" yaml:"medium"`
	High     float64 `json:"high" yaml:"high"`
	Critical float64 `json:"critical" yaml:"critical"`
}

type TrendConfig struct {
	WindowDays     int     `json:"window_days" yaml:"window_days"`
	StableBand     float64 `json:"stable_band" yaml:"stable_band"`
	ForecastWindow int     `json:"forecast_window" yaml:"forecast_window"`
	SlopeThreshold float64 `json:"slope_threshold" yaml:"slope_threshold"`
}

type EngineConfig struct {
	Interval      time.Duration `json:"interval" yaml:"interval"`
	TopIndicators int           `json:"top_indicators" yaml:"top_indicators"`
}

type RulesConfig struct {
	SeedDefaults    bool `json:"seed_defaults" yaml:"seed_defaults"`
	DefaultCooldown int  `json:"default_cooldown_minutes" yaml:"default_cooldown_minutes"`
}

type DispatchConfig struct {
	Timeout time.Duration       `json:"timeout" yaml:"timeout"`
	Kafka   KafkaDispatchConfig `json:"kafka" yaml:"kafka"`
}

// KafkaDispatchConfig is the handoff topic for email/sms notification jobs
// consumed by the gateway fleet.
type KafkaDispatchConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type HistoryConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Catalog:  CatalogConfig{Path: "catalog.yaml"},
		Scoring: ScoringConfig{
			PriorityBase:    map[string]float64{"P0": 80, "P1": 50, "P2": 20},
			DefaultBase:     30,
			InactiveFactor:  0.3,
			PriorityWeights: map[string]float64{"P0": 1.0, "P1": 0.7, "P2": 0.4},
			DefaultWeight:   0.4,
			PatternBonuses: []PatternBonus{
				{Contains: "critical", Bonus: 15},
				{Contains: "security", Bonus: 10},
				{Contains: "fraud", Bonus: 10},
				{Contains: "outage", Bonus: 8},
				{Contains: "compliance", Bonus: 5},
			},
			Levels: LevelThresholds{Medium: 40, High: 70, Critical: 90},
		},
		Trend: TrendConfig{
			WindowDays:     7,
			StableBand:     5,
			ForecastWindow: 7,
			SlopeThreshold: 0.1,
		},
		Engine: EngineConfig{
			Interval:      5 * time.Minute,
			TopIndicators: 3,
		},
		Rules: RulesConfig{
			SeedDefaults:    true,
			DefaultCooldown: 30,
		},
		Dispatch: DispatchConfig{
			Timeout: 5 * time.Second,
			Kafka:   KafkaDispatchConfig{Enabled: false, Topic: "riskwatch.notifications"},
		},
		Ingest: IngestConfig{
			ChannelBuffer: 1000,
			Kafka:         KafkaConfig{Enabled: false},
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:riskwatch.db?_pragma=busy_timeout(5000)"},
		Alerts:  AlertsConfig{StoreLimit: 1000},
		History: HistoryConfig{StoreLimit: 365},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if len(cfg.Scoring.PriorityBase) == 0 {
		cfg.Scoring.PriorityBase = map[string]float64{"P0": 80, "P1": 50, "P2": 20}
	}
	if cfg.Scoring.DefaultBase <= 0 {
		cfg.Scoring.DefaultBase = 30
	}
	if cfg.Scoring.InactiveFactor <= 0 {
		cfg.Scoring.InactiveFactor = 0.3
	}
	if len(cfg.Scoring.PriorityWeights) == 0 {
		cfg.Scoring.PriorityWeights = map[string]float64{"P0": 1.0, "P1": 0.7, "P2": 0.4}
	}
	if cfg.Scoring.DefaultWeight <= 0 {
		cfg.Scoring.DefaultWeight = 0.4
	}
	if cfg.Scoring.Levels.Medium <= 0 {
		cfg.Scoring.Levels.Medium = 40
	}
	if cfg.Scoring.Levels.High <= 0 {
		cfg.Scoring.Levels.High = 70
	}
	if cfg.Scoring.Levels.Critical <= 0 {
		cfg.Scoring.Levels.Critical = 90
	}
	if cfg.Trend.WindowDays <= 0 {
		cfg.Trend.WindowDays = 7
	}
	if cfg.Trend.StableBand <= 0 {
		cfg.Trend.StableBand = 5
	}
	if cfg.Trend.ForecastWindow <= 0 {
		cfg.Trend.ForecastWindow = 7
	}
	if cfg.Trend.SlopeThreshold <= 0 {
		cfg.Trend.SlopeThreshold = 0.1
	}
	if cfg.Engine.Interval <= 0 {
		cfg.Engine.Interval = 5 * time.Minute
	}
	if cfg.Engine.TopIndicators <= 0 {
		cfg.Engine.TopIndicators = 3
	}
	if cfg.Rules.DefaultCooldown <= 0 {
		cfg.Rules.DefaultCooldown = 30
	}
	if cfg.Dispatch.Timeout <= 0 {
		cfg.Dispatch.Timeout = 5 * time.Second
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1000
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.History.StoreLimit <= 0 {
		cfg.History.StoreLimit = 365
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Scoring.Levels.Medium >= cfg.Scoring.Levels.High ||
		cfg.Scoring.Levels.High >= cfg.Scoring.Levels.Critical {
		return errors.New("scoring.levels must be strictly ascending")
	}
	for p, w := range cfg.Scoring.PriorityWeights {
		if w <= 0 {
			return fmt.Errorf("scoring.priority_weights[%s] must be > 0", p)
		}
	}
	for id, w := range cfg.Catalog.Weights {
		if w < 0 {
			return fmt.Errorf("catalog.weights[%s] must be >= 0", id)
		}
	}
	for _, pb := range cfg.Scoring.PatternBonuses {
		if pb.Contains == "" {
			return errors.New("scoring.pattern_bonuses entries require a non-empty contains string")
		}
		if pb.Bonus < 0 {
			return fmt.Errorf("scoring.pattern_bonuses[%q] bonus must be >= 0", pb.Contains)
		}
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Dispatch.Kafka.Enabled {
		if len(cfg.Dispatch.Kafka.Brokers) == 0 || cfg.Dispatch.Kafka.Topic == "" {
			return errors.New("dispatch.kafka requires brokers and topic")
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps a fixed config with no backing file, for tests and
// embedded use.
func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if m.path == "" {
		m.cfg.Store(cfg)
		return nil
	}
	if err := Save(m.path, cfg); err != nil {
		return err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
