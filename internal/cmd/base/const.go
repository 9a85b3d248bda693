// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package base

// Exit codes returned by commands.
const (
	CommandSuccess = 0
	// CommandError is returned when the database or a migration fails.
	CommandError = 1
	// CommandUserError is returned for bad flags, arguments or configuration.
	CommandUserError = 2
	// CommandLockError is returned when the migration lock could not be
	// taken in time.
	CommandLockError = 3
)

const (
	// FlagNameConfig is the flag used to name the configuration file.
	FlagNameConfig = "config"
	// FlagNameDatabase is the flag used to read in the database uri.
	FlagNameDatabase = "database"
	// FlagNameSource is the flag used to read in a migration source
	// directory. It may be repeated.
	FlagNameSource = "source"
	// FlagNameBatch is the flag used to turn off prompting.
	FlagNameBatch = "batch"
)

const (
	EnvStrataCLINoColor = `STRATA_CLI_NO_COLOR`
	EnvStrataCLIFormat  = `STRATA_CLI_FORMAT`
	EnvStrataConfig     = `STRATA_CONFIG`
	EnvStrataLogLevel   = `STRATA_LOG_LEVEL`
)
