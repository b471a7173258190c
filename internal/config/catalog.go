package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SeedStage describes one stage of the pipeline ladder installed for new
// organizations.
type SeedStage struct {
	Name               string `mapstructure:"name"`
	DisplayOrder       int    `mapstructure:"displayOrder"`
	DefaultProbability *int16 `mapstructure:"defaultProbability"`
	IsClosed           bool   `mapstructure:"isClosed"`
	IsWon              bool   `mapstructure:"isWon"`
	Color              string `mapstructure:"color"`
}

// CatalogConfig is the seedable sales-process catalog.
type CatalogConfig struct {
	PipelineName string      `mapstructure:"pipelineName"`
	Stages       []SeedStage `mapstructure:"stages"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		PipelineName: "Sales Pipeline",
		Stages: []SeedStage{
			{Name: "Qualification", DisplayOrder: 1, DefaultProbability: int16Ptr(10), Color: "#9CA3AF"},
			{Name: "Needs Analysis", DisplayOrder: 2, DefaultProbability: int16Ptr(20), Color: "#60A5FA"},
			{Name: "Proposal", DisplayOrder: 3, DefaultProbability: int16Ptr(40), Color: "#FBBF24"},
			{Name: "Negotiation", DisplayOrder: 4, DefaultProbability: int16Ptr(60), Color: "#F97316"},
			{Name: "Closed Won", DisplayOrder: 5, DefaultProbability: int16Ptr(100), IsClosed: true, IsWon: true, Color: "#22C55E"},
			{Name: "Closed Lost", DisplayOrder: 6, DefaultProbability: int16Ptr(0), IsClosed: true, Color: "#EF4444"},
		},
	}
}

func int16Ptr(v int16) *int16 { return &v }

// CatalogHolder exposes the current catalog config with hot reload.
type CatalogHolder struct {
	current atomic.Value // holds CatalogConfig
}

func NewCatalogHolder() (*CatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/dealdesk/config")
	v.AddConfigPath("/etc/dealdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DEALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultCatalogConfig()
		v.SetDefault("catalog.pipelineName", defaults.PipelineName)
		v.SetDefault("catalog.stages", defaults.Stages)
	}

	var cfg CatalogConfig
	if err := v.UnmarshalKey("catalog", &cfg); err != nil {
		return nil, err
	}
	if err := validateCatalogConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CatalogHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CatalogConfig
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Printf("[catalog-config] reload failed: %v", err)
			return
		}
		if err := validateCatalogConfig(updated); err != nil {
			log.Printf("[catalog-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[catalog-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CatalogHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if strings.TrimSpace(cfg.PipelineName) == "" {
		return errors.New("catalog.pipelineName cannot be empty")
	}
	if len(cfg.Stages) == 0 {
		return errors.New("catalog.stages cannot be empty")
	}
	lastOrder := 0
	for _, stage := range cfg.Stages {
		if strings.TrimSpace(stage.Name) == "" {
			return errors.New("catalog stage name cannot be empty")
		}
		if stage.DisplayOrder <= lastOrder {
			return errors.New("catalog stage displayOrder must be strictly increasing")
		}
		lastOrder = stage.DisplayOrder
		if stage.DefaultProbability != nil && (*stage.DefaultProbability < 0 || *stage.DefaultProbability > 100) {
			return errors.New("catalog stage defaultProbability must be within 0-100")
		}
		if stage.IsWon && !stage.IsClosed {
			return errors.New("catalog stage marked won must also be closed")
		}
	}
	return nil
}
