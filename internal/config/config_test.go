package config

import (
	"os"
	"testing"
)

func TestLoadHistoryDriverSelection(t *testing.T) {
	t.Run("empty DSN forces the memory driver", func(t *testing.T) {
		t.Setenv("DB_CONNECTION_STRING", "")
		t.Setenv("CHAT_HISTORY_DRIVER", "database")

		cfg := Load()
		if cfg.Database.Connection != "" {
			t.Fatalf("Connection = %q, want empty", cfg.Database.Connection)
		}
		if cfg.Database.HistoryDriver != "memory" {
			t.Errorf("HistoryDriver = %q, want memory", cfg.Database.HistoryDriver)
		}
	})

	t.Run("DSN set defaults to the database driver", func(t *testing.T) {
		t.Setenv("DB_CONNECTION_STRING", "host=localhost user=app dbname=app")
		// t.Setenv registers the restore; the lookup must see the var unset.
		t.Setenv("CHAT_HISTORY_DRIVER", "x")
		os.Unsetenv("CHAT_HISTORY_DRIVER")

		cfg := Load()
		if cfg.Database.HistoryDriver != "database" {
			t.Errorf("HistoryDriver = %q, want database", cfg.Database.HistoryDriver)
		}
	})

	t.Run("explicit memory driver is respected with a DSN", func(t *testing.T) {
		t.Setenv("DB_CONNECTION_STRING", "host=localhost user=app dbname=app")
		t.Setenv("CHAT_HISTORY_DRIVER", "memory")

		cfg := Load()
		if cfg.Database.HistoryDriver != "memory" {
			t.Errorf("HistoryDriver = %q, want memory", cfg.Database.HistoryDriver)
		}
	})
}
