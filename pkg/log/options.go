/*
Copyright 2025 The Github Deploy Key Operator contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package log

import (
	"flag"
	"fmt"
	"strings"
)

type Format string

// Type implements the pflag.Value interfaces.
func (f *Format) Type() string {
	return "string"
}

func (f *Format) String() string {
	return string(*f)
}

func (f *Format) Set(s string) error {
	switch strings.ToLower(s) {
	case strings.ToLower(string(FormatJSON)):
		*f = FormatJSON
	case strings.ToLower(string(FormatConsole)):
		*f = FormatConsole
	default:
		return fmt.Errorf("invalid format %q, must be one of %v", s, AvailableFormats)
	}

	return nil
}

const (
	FormatJSON    Format = "JSON"
	FormatConsole Format = "Console"
)

type Formats []Format

var AvailableFormats = Formats{FormatJSON, FormatConsole}

func (f Formats) String() string {
	strs := make([]string, len(f))
	for i, format := range f {
		strs[i] = string(format)
	}

	return strings.Join(strs, ", ")
}

type Options struct {
	// Enable debug logs
	Debug bool
	// Log format (JSON or Console)
	Format Format
}

func NewDefaultOptions() Options {
	return Options{
		Debug:  false,
		Format: FormatJSON,
	}
}

func (o *Options) AddFlags(fs *flag.FlagSet) {
	fs.BoolVar(&o.Debug, "log-debug", o.Debug, "Enables debug logging")
	fs.Var(&o.Format, "log-format", fmt.Sprintf("Log format, one of %v", AvailableFormats))
}

func (o *Options) Validate() error {
	var validFormat bool
	for _, format := range AvailableFormats {
		if o.Format == format {
			validFormat = true
			break
		}
	}

	if !validFormat {
		return fmt.Errorf("invalid log format %q, must be one of %v", o.Format, AvailableFormats)
	}

	return nil
}
