// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// LogFormat is the output layout of the logger.
type LogFormat int

const (
	UnspecifiedFormat LogFormat = iota
	StandardFormat
	JSONFormat
)

func (f LogFormat) String() string {
	switch f {
	case StandardFormat:
		return "standard"
	case JSONFormat:
		return "json"
	default:
		return "unspecified"
	}
}

// ParseLogFormat parses a log format name.  The empty string is
// UnspecifiedFormat.
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		return UnspecifiedFormat, nil
	case "standard":
		return StandardFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return UnspecifiedFormat, fmt.Errorf("unknown log format: %s", format)
	}
}

// ProcessLogLevelAndFormat resolves the log level and format from flags,
// then config, then the defaults of "warn" and standard.  Each -v raises the
// level by one step from the resolved one.
func ProcessLogLevelAndFormat(flagLogLevel, flagLogFormat, configLogLevel, configLogFormat string, verbosity int) (hclog.Level, LogFormat, error) {
	logFormat := UnspecifiedFormat

	// If the flag wasn't set, check config; if not set use warn
	logLevel := strings.ToLower(strings.TrimSpace(flagLogLevel))
	if logLevel == "" {
		logLevel = strings.ToLower(strings.TrimSpace(configLogLevel))
		if logLevel == "" {
			logLevel = "warn"
		}
	}

	// Set level based off text value
	var level hclog.Level
	switch logLevel {
	case "trace":
		level = hclog.Trace
	case "debug":
		level = hclog.Debug
	case "notice", "info":
		level = hclog.Info
	case "warn", "warning":
		level = hclog.Warn
	case "err", "error":
		level = hclog.Error
	default:
		return level, logFormat, fmt.Errorf("unknown log level: %s", logLevel)
	}
	for ; verbosity > 0 && level > hclog.Trace; verbosity-- {
		level--
	}

	if flagLogFormat != "" {
		var err error
		logFormat, err = ParseLogFormat(flagLogFormat)
		if err != nil {
			return level, logFormat, err
		}
	}
	if logFormat == UnspecifiedFormat {
		var err error
		logFormat, err = ParseLogFormat(configLogFormat)
		if err != nil {
			return level, logFormat, err
		}
	}
	if logFormat == UnspecifiedFormat {
		logFormat = StandardFormat
	}

	return level, logFormat, nil
}

// NewLogger builds the command logger writing to w.
func NewLogger(w io.Writer, level hclog.Level, format LogFormat) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "strata",
		Level:      level,
		Output:     w,
		JSONFormat: format == JSONFormat,
	})
}
