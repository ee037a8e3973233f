package migrate

import (
	"strings"
	"testing"
)

func TestFilesAreOrderedAndCreateTables(t *testing.T) {
	files, err := Files()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(files) == 0 || files[0] != "001_init.sql" {
		t.Fatalf("expected 001_init.sql first, got %v", files)
	}

	b, err := fs.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read %s: %v", files[0], err)
	}
	for _, table := range []string{"service_settings", "service_window_overrides", "job_types", "booking_request_logs"} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("expected %s to create %s", files[0], table)
		}
	}
}
