// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package log

import "time"

// Operation is the kind of change a log entry records.
type Operation string

const (
	OpApply    Operation = "apply"
	OpRollback Operation = "rollback"
	OpMark     Operation = "mark"
	OpUnmark   Operation = "unmark"
)

// Entry represents a row of the migration log.
type Entry struct {
	Id          string
	MigrationId string
	Operation   Operation
	Username    string
	Hostname    string
	CreateTime  time.Time
}
