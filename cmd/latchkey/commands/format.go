// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "time"

// formatTime renders a milliseconds-since-epoch stamp in local time,
// or "-" for zero.
func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}

// orDash substitutes "-" for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
