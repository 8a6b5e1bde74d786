// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NVIDIA/diagpack/pkg/config"
	"github.com/NVIDIA/diagpack/pkg/errors"
)

// Names of options answered from the run configuration instead of the
// plugin.
const (
	OptionVerify        = "verify"
	OptionAllLogs       = "all_logs"
	OptionLogSize       = "log_size"
	OptionPluginTimeout = "plugin_timeout"

	// OptionTimeout is added to every plugin.
	OptionTimeout = "timeout"
)

// OptionSpec declares a plugin option. The type of Default fixes the type
// of the option: values set later are converted to it.
type OptionSpec struct {
	Name        string
	Description string
	// Speed is a hint about collection cost: "fast" or "slow".
	Speed   string
	Default any
}

// Options holds a plugin's option values.
type Options struct {
	cfg    *config.Config
	specs  []OptionSpec
	values map[string]any
}

func newOptions(specs []OptionSpec, cfg *config.Config) *Options {
	all := make([]OptionSpec, 0, len(specs)+1)
	all = append(all, specs...)
	all = append(all, OptionSpec{
		Name:        OptionTimeout,
		Description: "timeout in seconds for plugin",
		Speed:       "fast",
		Default:     -1,
	})

	o := &Options{cfg: cfg, specs: all, values: make(map[string]any, len(all))}
	for _, s := range all {
		o.values[s.Name] = s.Default
	}
	return o
}

// Specs returns the declared options, including the automatic timeout.
func (o *Options) Specs() []OptionSpec {
	return append([]OptionSpec(nil), o.specs...)
}

func (o *Options) spec(name string) (OptionSpec, bool) {
	for _, s := range o.specs {
		if s.Name == name {
			return s, true
		}
	}
	return OptionSpec{}, false
}

// Set assigns value to the named option, converting it to the type of the
// option's default.
func (o *Options) Set(name string, value any) error {
	s, ok := o.spec(name)
	if !ok {
		return errors.NewWithContext(errors.ErrCodeNotFound, "unknown plugin option",
			map[string]any{"option": name})
	}
	v, err := convertOption(value, s.Default)
	if err != nil {
		return errors.WrapWithContext(errors.ErrCodeInvalidRequest, "invalid option value", err,
			map[string]any{"option": name, "value": fmt.Sprint(value)})
	}
	o.values[name] = v
	return nil
}

func convertOption(value, def any) (any, error) {
	s, isString := value.(string)
	switch def.(type) {
	case nil:
		return value, nil
	case bool:
		if isString {
			return strconv.ParseBool(strings.TrimSpace(s))
		}
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case int:
		if isString {
			return strconv.Atoi(strings.TrimSpace(s))
		}
		if i, ok := value.(int); ok {
			return i, nil
		}
	case float64:
		if isString {
			return strconv.ParseFloat(strings.TrimSpace(s), 64)
		}
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
	case string:
		return fmt.Sprint(value), nil
	}
	return nil, fmt.Errorf("cannot convert %T to %T", value, def)
}

// Get returns the option value. Global options come from the run
// configuration. Unknown options and nil values return nil.
func (o *Options) Get(name string) any {
	switch name {
	case OptionVerify:
		return o.cfg.Verify
	case OptionAllLogs:
		return o.cfg.AllLogs
	case OptionLogSize:
		return o.cfg.LogSize
	case OptionPluginTimeout:
		return o.cfg.PluginTimeout
	}
	return o.values[name]
}

// Bool returns a boolean option, false when unset.
func (o *Options) Bool(name string) bool {
	b, _ := o.Get(name).(bool)
	return b
}

// Int returns an integer option.
func (o *Options) Int(name string) (int, error) {
	switch v := o.Get(name).(type) {
	case int:
		return v, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("option %q is %T, not int", name, v)
	}
}

// String returns an option formatted as a string, "" when unset.
func (o *Options) String(name string) string {
	v := o.Get(name)
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// List splits a string option on delimiter, dropping empty elements.
func (o *Options) List(name, delimiter string) []string {
	s, ok := o.Get(name).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, e := range strings.Split(s, delimiter) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Options returns the plugin's options.
func (p *Plugin) Options() *Options {
	return p.options
}

// SetOption assigns a plugin option.
func (p *Plugin) SetOption(name string, value any) error {
	return p.options.Set(name, value)
}

// Option returns a plugin or global option value.
func (p *Plugin) Option(name string) any {
	return p.options.Get(name)
}

// OptionAsList splits a string option on commas.
func (p *Plugin) OptionAsList(name string) []string {
	return p.options.List(name, ",")
}
