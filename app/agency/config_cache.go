package agency

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

type ConfigCache struct {
	agenciesDir string
	cache       map[string]*Config
	mu          sync.RWMutex
}

func NewConfigCache(agenciesDir string) *ConfigCache {
	return &ConfigCache{
		agenciesDir: agenciesDir,
		cache:       make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.agenciesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.agenciesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	ids := make(map[int]string, len(files))
	for _, file := range files {
		fileName := filepath.Base(file)
		agencyName := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(agencyName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		if other, ok := ids[config.ID]; ok {
			return fmt.Errorf("agency id %d is used by both %s and %s", config.ID, other, agencyName)
		}
		ids[config.ID] = agencyName

		slog.Debug("Configuration loaded", "agency", agencyName, "id", config.ID, "format", config.Format, "source", config.Source.Kind, "enabled", config.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(agencyName string) (*Config, error) {
	configFile := cc.getConfigFilePath(agencyName)
	agencyConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	agencyConfig.Name = agencyName

	if err := cc.validateConfig(agencyConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[agencyConfig.Name] = agencyConfig

	return agencyConfig, nil
}

func (cc *ConfigCache) GetConfig(agencyName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	agencyConfig, ok := cc.cache[agencyName]
	if !ok {
		return nil, fmt.Errorf("agency config with name '%s' not found", agencyName)
	}
	return agencyConfig, nil
}

// GetConfigs returns every loaded agency ordered by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// GetEnabledConfigs returns enabled agencies ordered by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	var enabled []*Config
	for _, v := range cc.GetConfigs() {
		if v.Enabled {
			enabled = append(enabled, v)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var agencyConfig Config
	if err := yaml.Unmarshal(data, &agencyConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	src := &agencyConfig.Source
	if src.Timeout == 0 {
		src.Timeout = 30
	}
	switch src.Kind {
	case SourceFTP:
		if src.Port == 0 {
			src.Port = 21
		}
		if src.Path == "" {
			src.Path = "/"
		}
	case SourceSFTP:
		if src.Port == 0 {
			src.Port = 22
		}
		if src.Path == "" {
			src.Path = "."
		}
	}
	if src.PasswordEnv != "" {
		src.Password = os.Getenv(src.PasswordEnv)
	}

	return &agencyConfig, nil
}

func (cc *ConfigCache) validateConfig(agencyConfig *Config) error {
	if agencyConfig == nil {
		return fmt.Errorf("agencyConfig is nil")
	}

	if agencyConfig.Name == "" {
		return fmt.Errorf("agency name is required")
	}
	if agencyConfig.ID <= 0 {
		return fmt.Errorf("agency id must be positive")
	}
	if agencyConfig.Format == "" {
		return fmt.Errorf("format is required")
	}

	src := agencyConfig.Source
	switch src.Kind {
	case SourceLocal:
		if src.Path == "" {
			return fmt.Errorf("source path is required for local sources")
		}
	case SourceFTP, SourceSFTP:
		requiredFields := map[string]string{
			"source host":     src.Host,
			"source username": src.Username,
		}
		for fieldName, fieldValue := range requiredFields {
			if fieldValue == "" {
				return fmt.Errorf("%s is required for %s sources", fieldName, src.Kind)
			}
		}
	default:
		return fmt.Errorf("invalid source kind: %q", src.Kind)
	}

	nonNegativeFields := map[string]int{
		"source port": src.Port,
		"timeout":     src.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, ext := range agencyConfig.Extensions {
		if ext == "" {
			return fmt.Errorf("empty extension at index %d", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(agencyName string) string {
	return filepath.Join(cc.agenciesDir, agencyName+".yml")
}
