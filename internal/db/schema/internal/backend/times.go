// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/strata/internal/errors"
)

// timeFormats lists the layouts drivers use when a timestamp comes back as
// text.
var timeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// scanTime converts a scanned timestamp column into a UTC time.  A NULL
// column is the zero time.
func scanTime(v any) (time.Time, error) {
	const op = "backend.scanTime"
	var s string
	switch tv := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return tv.UTC(), nil
	case string:
		s = tv
	case []byte:
		s = string(tv)
	default:
		return time.Time{}, errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("unsupported time value of type %T", v))
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("unsupported time format: %q", s))
}
