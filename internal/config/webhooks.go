package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WebhookPolicy is the part of the Bolsa webhook security settings that
// operators may change without a restart.
type WebhookPolicy struct {
	IPAllowlist   []string      `mapstructure:"ipAllowlist"`
	TimestampSkew time.Duration `mapstructure:"timestampSkew"`
	MaxBodyBytes  int64         `mapstructure:"maxBodyBytes"`
}

func DefaultWebhookPolicy(cfg Config) WebhookPolicy {
	return WebhookPolicy{
		IPAllowlist:   append([]string(nil), cfg.Bolsa.IPAllowlist...),
		TimestampSkew: cfg.Bolsa.TimestampSkew,
		MaxBodyBytes:  cfg.Bolsa.MaxBodyBytes,
	}
}

type WebhookPolicyHolder struct {
	current atomic.Value // holds WebhookPolicy
}

// NewStaticWebhookPolicyHolder returns a holder that never reloads.
func NewStaticWebhookPolicyHolder(policy WebhookPolicy) *WebhookPolicyHolder {
	holder := &WebhookPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewWebhookPolicyHolder(cfg Config, log *zap.Logger) (*WebhookPolicyHolder, error) {
	log = log.Named("config.webhooks")
	v := viper.New()

	v.SetConfigName("webhooks")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/colegio")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COLEGIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultWebhookPolicy(cfg)
	v.SetDefault("bolsa.ipAllowlist", defaults.IPAllowlist)
	v.SetDefault("bolsa.timestampSkew", defaults.TimestampSkew)
	v.SetDefault("bolsa.maxBodyBytes", defaults.MaxBodyBytes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var policy WebhookPolicy
	if err := v.UnmarshalKey("bolsa", &policy); err != nil {
		return nil, err
	}
	if err := ValidateWebhookPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticWebhookPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WebhookPolicy
		if err := v.UnmarshalKey("bolsa", &updated); err != nil {
			log.Warn("webhook policy reload failed", zap.Error(err))
			return
		}
		if err := ValidateWebhookPolicy(updated); err != nil {
			log.Warn("invalid webhook policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("webhook policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *WebhookPolicyHolder) Get() WebhookPolicy {
	return h.current.Load().(WebhookPolicy)
}

func ValidateWebhookPolicy(p WebhookPolicy) error {
	if p.TimestampSkew <= 0 {
		return errors.New("bolsa.timestampSkew must be positive")
	}
	if p.MaxBodyBytes <= 0 {
		return errors.New("bolsa.maxBodyBytes must be positive")
	}
	for _, entry := range p.IPAllowlist {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("bolsa.ipAllowlist: invalid cidr %q", entry)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("bolsa.ipAllowlist: invalid ip %q", entry)
		}
	}
	return nil
}
