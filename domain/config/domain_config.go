package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the tunable rules of the change log and layout engine
type DomainConfig struct {
	Layout    LayoutConfig    `yaml:"layout" json:"layout"`
	ChangeLog ChangeLogConfig `yaml:"change_log" json:"change_log"`
	Refresh   RefreshConfig   `yaml:"refresh" json:"refresh"`
}

// LayoutConfig controls the fixed spacings of the layout engine
type LayoutConfig struct {
	OriginX      float64 `yaml:"origin_x" json:"origin_x"`
	OriginY      float64 `yaml:"origin_y" json:"origin_y"`
	LevelSpacing float64 `yaml:"level_spacing" json:"level_spacing"`
	NodeSpacing  float64 `yaml:"node_spacing" json:"node_spacing"`
	GroupGap     float64 `yaml:"group_gap" json:"group_gap"`
}

// ChangeLogConfig bounds paging and batch sizes
type ChangeLogConfig struct {
	DefaultHistoryLimit int `yaml:"default_history_limit" json:"default_history_limit"`
	MaxHistoryLimit     int `yaml:"max_history_limit" json:"max_history_limit"`
	MaxBatchSize        int `yaml:"max_batch_size" json:"max_batch_size"`
}

// RefreshConfig is the client refresh policy
type RefreshConfig struct {
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	Fallback time.Duration `yaml:"fallback" json:"fallback"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		Layout: LayoutConfig{
			LevelSpacing: 280,
			NodeSpacing:  120,
			GroupGap:     200,
		},
		ChangeLog: ChangeLogConfig{
			DefaultHistoryLimit: 50,
			MaxHistoryLimit:     200,
			MaxBatchSize:        100,
		},
		Refresh: RefreshConfig{
			Debounce: 1500 * time.Millisecond,
			Fallback: 30 * time.Second,
		},
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.ChangeLog.MaxBatchSize = 50
	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.ChangeLog.MaxBatchSize = 500
	config.Refresh.Debounce = time.Second
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.Layout.LevelSpacing <= 0 || c.Layout.NodeSpacing <= 0 {
		return fmt.Errorf("layout spacing must be positive")
	}
	if c.Layout.GroupGap < 0 {
		return fmt.Errorf("layout group gap must not be negative")
	}
	if c.ChangeLog.DefaultHistoryLimit <= 0 || c.ChangeLog.MaxHistoryLimit < c.ChangeLog.DefaultHistoryLimit {
		return fmt.Errorf("history limits must satisfy 0 < default <= max")
	}
	if c.ChangeLog.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive")
	}
	if c.Refresh.Debounce <= 0 || c.Refresh.Fallback <= c.Refresh.Debounce {
		return fmt.Errorf("refresh fallback must be longer than the debounce window")
	}
	return nil
}
