package app

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ohlcv-watch/internal/model"
	"ohlcv-watch/internal/slogx"
	"ohlcv-watch/internal/timeframe"
	"ohlcv-watch/internal/watch"
)

// EnvPrefix prefixes every environment override, e.g. OHLCV_WATCH_BRIDGE_URL.
const EnvPrefix = "OHLCV_WATCH"

const (
	DefaultFilenameTemplate = "{symbol}_{timeframe}.{ext}"
	DefaultBridgeURL        = "http://127.0.0.1:8228"
)

// Config is the run configuration. It is built once by LoadConfig and never mutated.
type Config struct {
	Symbols          []string `mapstructure:"symbols" yaml:"symbols" validate:"required,min=1,dive,required"`
	Timeframes       []string `mapstructure:"timeframes" yaml:"timeframes" validate:"required,min=1,dive,required"`
	Bars             int      `mapstructure:"bars" yaml:"bars" validate:"gte=1"`
	Timezone         string   `mapstructure:"timezone" yaml:"timezone"`
	FilenameTemplate string   `mapstructure:"filename-template" yaml:"filename-template" validate:"required"`
	OutputDir        string   `mapstructure:"output-dir" yaml:"output-dir" validate:"required"`
	PollInterval     float64  `mapstructure:"poll-interval" yaml:"poll-interval" validate:"gt=0"`
	Policy           string   `mapstructure:"policy" yaml:"policy" validate:"oneof=append refresh"`
	FullRefresh      bool     `mapstructure:"full-refresh" yaml:"full-refresh"`
	Format           string   `mapstructure:"format" yaml:"format" validate:"oneof=csv json parquet"`
	Once             bool     `mapstructure:"once" yaml:"once"`

	BridgeURL     string        `mapstructure:"bridge-url" yaml:"bridge-url" validate:"required,url"`
	BridgeTimeout time.Duration `mapstructure:"bridge-timeout" yaml:"bridge-timeout" validate:"gt=0"`
	BridgeRPS     float64       `mapstructure:"bridge-rps" yaml:"bridge-rps" validate:"gte=0"`
	StartPos      int           `mapstructure:"start-pos" yaml:"start-pos" validate:"gte=0"`

	ReconnectAttempts int           `mapstructure:"reconnect-attempts" yaml:"reconnect-attempts" validate:"gte=0"`
	ReconnectMin      time.Duration `mapstructure:"reconnect-min" yaml:"reconnect-min" validate:"gt=0"`
	ReconnectMax      time.Duration `mapstructure:"reconnect-max" yaml:"reconnect-max" validate:"gtefield=ReconnectMin"`

	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat" validate:"gte=0"`
	Report    bool          `mapstructure:"report" yaml:"report"`
	LogLevel  string        `mapstructure:"log-level" yaml:"log-level" validate:"loglevel"`
	LogFormat string        `mapstructure:"log-format" yaml:"log-format" validate:"logformat"`
}

// Interval returns PollInterval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollInterval * float64(time.Second))
}

// EffectivePolicy folds --full-refresh into the policy.
func (c *Config) EffectivePolicy() watch.Policy {
	if c.FullRefresh {
		return watch.PolicyRefresh
	}
	p, _ := watch.ParsePolicy(c.Policy)
	return p
}

// YAML renders the effective configuration for debug logging.
func (c *Config) YAML() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(out)
}

// NewFlagSet declares every flag with its default.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ohlcv-watch", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ohlcv-watch [flags] SYMBOL [SYMBOL...]\n\nFlags:\n%s", fs.FlagUsages())
	}
	fs.StringSlice("timeframes", []string{"M1"}, "timeframes to watch ("+strings.Join(timeframe.Codes(), ",")+")")
	fs.Int("bars", 200, "history window written on seed and refresh")
	fs.String("timezone", "UTC", `display timezone (IANA name or "UTC")`)
	fs.String("filename-template", DefaultFilenameTemplate, "output file name; placeholders {symbol} {timeframe} {ext}")
	fs.String("output-dir", "./data", "output directory")
	fs.Float64("poll-interval", 0.5, "seconds between poll ticks")
	fs.String("policy", string(watch.PolicyAppend), "write policy on a new close: append|refresh")
	fs.Bool("full-refresh", false, "shorthand for --policy refresh")
	fs.String("format", "csv", "output format: csv|json|parquet")
	fs.Bool("once", false, "export the history window for every target and exit")
	fs.String("bridge-url", DefaultBridgeURL, "terminal bridge base URL")
	fs.Duration("bridge-timeout", 30*time.Second, "per-request bridge timeout")
	fs.Float64("bridge-rps", 20, "max bridge requests per second (0 = unlimited)")
	fs.Int("start-pos", 0, "bar index to read from (0 = newest closed bar)")
	fs.Int("reconnect-attempts", 5, "reconnect attempts after the terminal link drops (0 = exit)")
	fs.Duration("reconnect-min", time.Second, "initial reconnect backoff")
	fs.Duration("reconnect-max", 30*time.Second, "max reconnect backoff")
	fs.Duration("heartbeat", 5*time.Minute, "heartbeat log interval (0 = off)")
	fs.Bool("report", true, "write <output-dir>/.lastrun.json on shutdown")
	fs.String("log-level", "info", "log level: "+strings.Join(slogx.Levels, "|"))
	fs.String("log-format", "text", "log format: "+strings.Join(slogx.Formats, "|"))
	fs.String("config", "", "optional YAML config file")
	return fs
}

// LoadConfig parses args (without the program name), merges the optional
// config file and OHLCV_WATCH_* env vars, and validates the result.
// Flags win over env, env over the file, the file over defaults.
func LoadConfig(args []string) (*Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, &model.ConfigError{Field: "flags", Reason: err.Error()}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	v.SetDefault("symbols", []string{})
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, &model.ConfigError{Field: "config", Value: path, Reason: err.Error()}
		}
	}
	if fs.NArg() > 0 {
		v.Set("symbols", fs.Args())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, &model.ConfigError{Field: "config", Reason: err.Error()}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Symbols = splitTrim(c.Symbols)
	c.Timeframes = splitTrim(c.Timeframes)
	c.Policy = strings.ToLower(strings.TrimSpace(c.Policy))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Timezone = strings.TrimSpace(c.Timezone)
}

// splitTrim flattens comma-joined entries and drops blanks and repeats.
func splitTrim(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("loglevel", oneOfList(slogx.Levels))
	v.RegisterValidation("logformat", oneOfList(slogx.Formats))
	return v
}

func oneOfList(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	}
}

// Validate checks field rules and that every timeframe code is known.
// The first failure is returned as *model.ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return &model.ConfigError{Field: fieldName(fe), Value: fmt.Sprint(fe.Value()), Reason: reason(fe)}
		}
		return &model.ConfigError{Field: "config", Reason: err.Error()}
	}
	if _, err := timeframe.ParseList(c.Timeframes); err != nil {
		return err
	}
	return nil
}

// fieldName strips the struct prefix and any slice index so errors name the flag.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "needs at least " + fe.Param() + " value(s)"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be an absolute URL"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gtefield":
		return "must not be below reconnect-min"
	case "loglevel":
		return "must be one of: " + strings.Join(slogx.Levels, ", ")
	case "logformat":
		return "must be one of: " + strings.Join(slogx.Formats, ", ")
	default:
		return "failed validation: " + fe.Tag()
	}
}
