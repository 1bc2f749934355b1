// Package config holds the options of transactions and how they are loaded.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/hashicorp/go-multierror"

	"github.com/safing/deltatx/formats/dsd"
	"github.com/safing/deltatx/log"
)

// Options configure a transaction.
type Options struct {
	// DefaultTimeout arms the deadline of a new transaction right away.
	// Zero disables it.
	DefaultTimeout Duration `json:"defaultTimeout,omitempty"`
	// CommitOnExpiry decides how the default timeout resolves.
	CommitOnExpiry bool `json:"commitOnExpiry,omitempty"`
	// CancelTimeoutOnResolve cancels an armed deadline on a manual commit or
	// rollback.
	CancelTimeoutOnResolve bool `json:"cancelTimeoutOnResolve,omitempty"`
	// SkipRedundantDeleteEvents suppresses the set events of deleting a field
	// that is already deleted.
	SkipRedundantDeleteEvents bool `json:"skipRedundantDeleteEvents,omitempty"`
	// DeltaFormat is the serialization format used to export deltas.
	DeltaFormat string `json:"deltaFormat,omitempty"`
	// CompressDelta gzips exported deltas.
	CompressDelta bool `json:"compressDelta,omitempty"`
	// LogLevel is applied to the logger by ApplyLogLevel.
	LogLevel string `json:"logLevel,omitempty"`
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		DeltaFormat: "json",
		LogLevel:    "info",
	}
}

// Parse reads options from YAML or JSON. Missing fields keep their default.
func Parse(data []byte) (*Options, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("config: failed to parse options: %w", err)
	}

	opts := DefaultOptions()
	if err := json.Unmarshal(jsonData, opts); err != nil {
		return nil, fmt.Errorf("config: failed to parse options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Load reads and parses the options file at path.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks all options and reports every problem found.
func (o *Options) Validate() error {
	var result *multierror.Error

	if o.DefaultTimeout < 0 {
		result = multierror.Append(result, newInvalidValueError("defaultTimeout", o.DefaultTimeout, "must not be negative"))
	}
	if _, ok := o.Format(); !ok {
		result = multierror.Append(result, newInvalidValueError("deltaFormat", o.DeltaFormat, "unknown format"))
	}
	if o.LogLevel != "" && log.ParseLevel(o.LogLevel) == 0 {
		result = multierror.Append(result, newInvalidValueError("logLevel", o.LogLevel, "unknown level"))
	}

	return result.ErrorOrNil()
}

// Format returns the serialization format for exported deltas. AUTO is
// resolved to the default format.
func (o *Options) Format() (dsd.SerializationFormat, bool) {
	format, ok := dsd.ParseFormat(o.DeltaFormat)
	if !ok {
		return 0, false
	}
	return format.ValidateSerializationFormat()
}

// ApplyLogLevel sets the log level of the logger, if one is configured.
func (o *Options) ApplyLogLevel() {
	if strings.TrimSpace(o.LogLevel) == "" {
		return
	}
	if level := log.ParseLevel(o.LogLevel); level != 0 {
		log.SetLogLevel(level)
	}
}

// Copy returns a copy of the options. A nil receiver returns the defaults.
func (o *Options) Copy() *Options {
	if o == nil {
		return DefaultOptions()
	}
	copied := *o
	return &copied
}
