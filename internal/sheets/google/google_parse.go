package google

import (
	"strings"
	"time"

	ports "atlas/internal/sheets"
)

// parseAuditRows converts a values matrix (as returned by Sheets API) into
// audit rows. A header row and rows without a parseable timestamp are skipped.
func parseAuditRows(values [][]interface{}) []ports.AuditRow {
	out := make([]ports.AuditRow, 0, len(values))
	for _, raw := range values {
		row := toStrings(raw)
		if len(row) == 0 || isHeader(row) {
			continue
		}
		ts, err := time.Parse(time.RFC3339, safeGet(row, 0))
		if err != nil {
			continue
		}
		out = append(out, ports.AuditRow{
			Timestamp: ts,
			Owner:     safeGet(row, 1),
			Resource:  safeGet(row, 2),
			Action:    safeGet(row, 3),
			ID:        safeGet(row, 4),
			Date:      safeGet(row, 5),
			Kind:      safeGet(row, 6),
			Category:  safeGet(row, 7),
			Amount:    safeGet(row, 8),
			Note:      safeGet(row, 9),
		})
	}
	return out
}

// isHeader reports whether the row matches the audit sheet header.
func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(row[0], ports.AuditColumns[0])
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
