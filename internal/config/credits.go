package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CreditPackage is a purchasable bundle advertised to the dashboard.
type CreditPackage struct {
	Code     string `mapstructure:"code" json:"code"`
	Credits  int64  `mapstructure:"credits" json:"credits"`
	Amount   string `mapstructure:"amount" json:"amount"`
	Currency string `mapstructure:"currency" json:"currency"`
}

// CreditsConfig holds pricing knobs that can change without a restart.
type CreditsConfig struct {
	PerImage int64           `mapstructure:"perImage" json:"perImage"`
	Packages []CreditPackage `mapstructure:"packages" json:"packages"`
}

func DefaultCreditsConfig() CreditsConfig {
	return CreditsConfig{
		PerImage: 1,
		Packages: []CreditPackage{
			{Code: "starter", Credits: 100, Amount: "10.00", Currency: "usd"},
			{Code: "growth", Credits: 500, Amount: "40.00", Currency: "usd"},
			{Code: "scale", Credits: 2000, Amount: "120.00", Currency: "usd"},
		},
	}
}

type CreditsConfigHolder struct {
	current atomic.Value // holds CreditsConfig
}

// NewStaticCreditsConfigHolder returns a holder that never reloads.
func NewStaticCreditsConfigHolder(cfg CreditsConfig) *CreditsConfigHolder {
	holder := &CreditsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCreditsConfigHolder(log *zap.Logger) (*CreditsConfigHolder, error) {
	log = log.Named("config.credits")
	v := viper.New()

	v.SetConfigName("credits")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tryon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRYON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCreditsConfig()
	v.SetDefault("credits.perImage", defaults.PerImage)
	v.SetDefault("credits.packages", defaults.Packages)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg CreditsConfig
	if err := v.UnmarshalKey("credits", &cfg); err != nil {
		return nil, err
	}
	// VTO_CREDITS_PER_IMAGE is honoured for parity with existing deployments.
	if perImage := getenvInt64("VTO_CREDITS_PER_IMAGE", 0); perImage > 0 {
		cfg.PerImage = perImage
	}
	if err := validateCreditsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CreditsConfigHolder{}
	holder.current.Store(cfg)

	if fileFound {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated CreditsConfig
			if err := v.UnmarshalKey("credits", &updated); err != nil {
				log.Warn("reload failed", zap.Error(err))
				return
			}
			if err := validateCreditsConfig(updated); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name), zap.Int64("per_image", updated.PerImage))
		})
	}

	return holder, nil
}

func (h *CreditsConfigHolder) Get() CreditsConfig {
	return h.current.Load().(CreditsConfig)
}

// PackageByCode returns the configured package with the given code.
func (h *CreditsConfigHolder) PackageByCode(code string) (CreditPackage, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, pkg := range h.Get().Packages {
		if strings.ToLower(pkg.Code) == code {
			return pkg, true
		}
	}
	return CreditPackage{}, false
}

func validateCreditsConfig(cfg CreditsConfig) error {
	if cfg.PerImage <= 0 {
		return errors.New("credits.perImage must be positive")
	}
	seen := make(map[string]struct{}, len(cfg.Packages))
	for _, pkg := range cfg.Packages {
		code := strings.ToLower(strings.TrimSpace(pkg.Code))
		if code == "" {
			return errors.New("credits.packages code cannot be empty")
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("credits.packages duplicate code %q", code)
		}
		seen[code] = struct{}{}
		if pkg.Credits <= 0 {
			return fmt.Errorf("credits.packages %q credits must be positive", code)
		}
	}
	return nil
}
