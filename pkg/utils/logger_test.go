package utils

import "testing"

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"debug json", "debug", "json", false},
		{"info console", "info", "console", false},
		{"warn json", "warn", "json", false},
		{"error json", "error", "json", false},
		{"defaults", "", "", false},
		{"unknown level", "verbose", "json", true},
		{"unknown format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
			}
			if !tt.wantErr && log == nil {
				t.Fatal("expected a logger")
			}
		})
	}
}

func TestNewNopLogger(t *testing.T) {
	log := NewNopLogger()
	if log == nil {
		t.Fatal("expected a logger")
	}
	// Не должен паниковать и что-либо писать
	log.Info("silence")
}
