// Package config loads contractgen.yaml.
//
// The file is decoded in two stages: yaml.v3 into a generic map, then
// mapstructure into Config using the `config` tags. Missing values get
// defaults and the result is validated with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up when no path is given.
const FileName = "contractgen.yaml"

// Config drives one generator run.
type Config struct {
	DirectivePrefix string `config:"directive_prefix" validate:"required,alpha,lowercase"`
	BuildTag        string `config:"build_tag" validate:"required,alphanum"`
	OutputSuffix    string `config:"output_suffix" validate:"required,endswith=.go"`
	ABISuffix       string `config:"abi_suffix" validate:"required,alphanum"`
	ImplSuffix      string `config:"impl_suffix" validate:"required,alphanum"`

	// EmbedDiagnostics writes configuration errors into generated files as
	// build-failing sentinels. Unset means true.
	EmbedDiagnostics *bool `config:"embed_diagnostics"`

	Jobs    int      `config:"jobs" validate:"gte=0,lte=256"`
	Include []string `config:"include" validate:"dive,glob"`
	Exclude []string `config:"exclude" validate:"dive,glob"`

	Log Log `config:"log"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `config:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `config:"format" validate:"omitempty,oneof=text json"`
}

// Error reports the stage of Load that failed.
type Error struct {
	Path  string
	Stage string // read, parse, decode or validate
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config %s error: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("config %s error in %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the configuration used without a config file.
func Default() Config {
	var c Config
	ApplyDefaults(&c)
	return c
}

// ApplyDefaults fills every unset field of c.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.DirectivePrefix == "" {
		c.DirectivePrefix = "contract"
	}
	if c.BuildTag == "" {
		c.BuildTag = "contractgen"
	}
	if c.OutputSuffix == "" {
		c.OutputSuffix = "_contract.gen.go"
	}
	if c.ABISuffix == "" {
		c.ABISuffix = "ABI"
	}
	if c.ImplSuffix == "" {
		c.ImplSuffix = "Impl"
	}
	if c.EmbedDiagnostics == nil {
		on := true
		c.EmbedDiagnostics = &on
	}
	if c.Jobs == 0 {
		c.Jobs = runtime.GOMAXPROCS(0)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Embed reports whether sentinels are written into generated files.
func (c Config) Embed() bool { return c.EmbedDiagnostics == nil || *c.EmbedDiagnostics }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
		return doublestar.ValidatePattern(fl.Field().String())
	})
	return v
}

// Validate checks c against the field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &Error{Stage: "validate", Err: fmt.Errorf("%s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())}
		}
		return &Error{Stage: "validate", Err: err}
	}
	return nil
}

// Load reads path. An empty path means the defaults, as does a missing
// contractgen.yaml when optional is set.
func Load(path string, optional bool) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, &Error{Path: path, Stage: "read", Err: err}
	}
	c, err := Parse(raw)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return Config{}, err
	}
	return c, nil
}

// Parse decodes a YAML document, applies defaults and validates.
func Parse(raw []byte) (Config, error) {
	var source map[string]any
	if err := yaml.Unmarshal(raw, &source); err != nil {
		return Config{}, &Error{Stage: "parse", Err: err}
	}
	var c Config
	if err := decode(source, &c); err != nil {
		return Config{}, &Error{Stage: "decode", Err: err}
	}
	ApplyDefaults(&c)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decode(source map[string]any, target *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "config",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return err
	}
	return dec.Decode(source)
}
