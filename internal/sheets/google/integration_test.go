//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	ports "atlas/internal/sheets"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_AppendAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	row := ports.AuditRow{
		Timestamp: now,
		Owner:     "integration",
		Resource:  "entry",
		Action:    "created",
		ID:        "it-" + now.Format("150405"),
		Date:      now.Format("2006-01-02"),
		Kind:      "expense",
		Category:  "Teste",
		Amount:    "1.23",
		Note:      "integration test",
	}
	ref, err := client.AppendRow(ctx, row)
	if err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	t.Logf("appended %s", ref)

	rows, err := client.ListRows(ctx, now.Year())
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	for _, r := range rows {
		if r.ID == row.ID {
			return
		}
	}
	t.Fatalf("appended row %s not found among %d rows", row.ID, len(rows))
}

func TestIntegration_ContextCancellation(t *testing.T) {
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set")
	}

	client, err := NewFromEnv(context.Background())
	if err != nil {
		t.Skip("Cannot create client, skipping context test")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ListRows(ctx, time.Now().Year()); err == nil {
		t.Error("Expected context cancellation error")
	}
}
