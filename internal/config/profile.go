package config

import (
	"errors"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Profile is the named probability and pricing tables that shape a
// generation run. Keeping them in configuration (rather than inline
// literals) lets tests substitute deterministic policies.
type Profile struct {
	PlanMix    map[string]float64 `mapstructure:"planMix"`
	ChannelMix map[string]float64 `mapstructure:"channelMix"`
	CountryMix map[string]float64 `mapstructure:"countryMix"`

	// PlanPriceUSD is the monthly price per plan; it is also the invoice
	// amount for every billing month of that plan.
	PlanPriceUSD map[string]float64 `mapstructure:"planPriceUSD"`

	Industries        []string `mapstructure:"industries"`
	DevicePreferences []string `mapstructure:"devicePreferences"`
	UserRoles         []string `mapstructure:"userRoles"`
	Features          []string `mapstructure:"features"`
	FeatureActions    []string `mapstructure:"featureActions"`

	FailureReasons []string `mapstructure:"failureReasons"`
	// RetryReasons are drawn for failed attempts that precede a
	// successful payment, and as a fallback when a failed invoice
	// carries no recorded reason.
	RetryReasons []string `mapstructure:"retryReasons"`

	MaxAttempts      int     `mapstructure:"maxAttempts"`
	TerminalFailProb float64 `mapstructure:"terminalFailProb"`
	RefundRate       float64 `mapstructure:"refundRate"`
	ChargebackRate   float64 `mapstructure:"chargebackRate"`

	// ChurnCancelThreshold gates cancel_intent emission: only customers
	// above it may emit one, with probability equal to their propensity.
	ChurnCancelThreshold float64 `mapstructure:"churnCancelThreshold"`
}

// DefaultProfile mirrors the hand-tuned demo distributions.
func DefaultProfile() Profile {
	return Profile{
		PlanMix:    map[string]float64{"BASIC": 0.55, "PRO": 0.35, "TEAM": 0.10},
		ChannelMix: map[string]float64{"organic": 0.45, "paid": 0.35, "referral": 0.12, "partner": 0.08},
		CountryMix: map[string]float64{"US": 0.55, "IN": 0.20, "CA": 0.10, "UK": 0.10, "AU": 0.05},

		PlanPriceUSD: map[string]float64{"BASIC": 29, "PRO": 99, "TEAM": 249},

		Industries:        []string{"fintech", "ecommerce", "health", "education", "media", "b2b_saas"},
		DevicePreferences: []string{"web", "ios", "android"},
		UserRoles:         []string{"admin", "analyst", "member"},
		Features:          []string{"dashboard", "reports", "exports", "integrations", "settings"},
		FeatureActions:    []string{"view", "click", "export", "configure"},

		FailureReasons: []string{"insufficient_funds", "card_declined", "expired_card", "network_error", "unknown"},
		RetryReasons:   []string{"insufficient_funds", "card_declined", "network_error"},

		MaxAttempts:      4,
		TerminalFailProb: 0.35,
		RefundRate:       0.012,
		ChargebackRate:   0.0025,

		ChurnCancelThreshold: 0.55,
	}
}

// Validate reports whether the profile can drive a run.
func (p Profile) Validate() error {
	if len(p.PlanMix) == 0 || len(p.ChannelMix) == 0 || len(p.CountryMix) == 0 {
		return errors.New("profile_missing_mix")
	}
	if len(p.PlanPriceUSD) == 0 {
		return errors.New("profile_missing_prices")
	}
	if p.MaxAttempts < 1 {
		return errors.New("profile_invalid_max_attempts")
	}
	if len(p.FailureReasons) == 0 || len(p.RetryReasons) == 0 {
		return errors.New("profile_missing_failure_reasons")
	}
	// Samplers index into these without further checks, so an empty
	// vocabulary must be rejected before a run starts.
	if len(p.Industries) == 0 || len(p.DevicePreferences) == 0 ||
		len(p.UserRoles) == 0 || len(p.Features) == 0 || len(p.FeatureActions) == 0 {
		return errors.New("profile_missing_vocabulary")
	}
	return nil
}

// ProfileHolder serves the current generation profile and hot-reloads it
// when the profile file changes on disk.
type ProfileHolder struct {
	current atomic.Value // holds Profile
}

// NewProfileHolder reads datasmith.yml from the configured profile path,
// falling back to the built-in defaults when no file exists.
func NewProfileHolder(cfg Config, log *zap.Logger) (*ProfileHolder, error) {
	v := viper.New()

	v.SetConfigName("datasmith")
	v.SetConfigType("yml")
	v.AddConfigPath(cfg.ProfilePath)
	v.AddConfigPath("/etc/datasmith")

	holder := &ProfileHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultProfile())
		return holder, nil
	}

	profile, err := unmarshalProfile(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(profile)

	v.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := unmarshalProfile(v)
		if err != nil {
			log.Warn("profile reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(reloaded)
		log.Info("profile reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active profile.
func (h *ProfileHolder) Current() Profile {
	if p, ok := h.current.Load().(Profile); ok {
		return p
	}
	return DefaultProfile()
}

func unmarshalProfile(v *viper.Viper) (Profile, error) {
	profile := DefaultProfile()
	if err := v.UnmarshalKey("generation", &profile); err != nil {
		return Profile{}, err
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
