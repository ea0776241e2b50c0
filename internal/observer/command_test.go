package observer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCommandSample(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantProcess string
		wantTitle   string
		wantIdle    time.Duration
		wantErr     bool
	}{
		{
			name:        "all commands",
			cfg:         Config{ProcessCommand: "echo editor", TitleCommand: "printf 'main.go - project\\nignored\\n'", IdleCommand: "echo 1500"},
			wantProcess: "editor",
			wantTitle:   "main.go - project",
			wantIdle:    1500 * time.Millisecond,
		},
		{
			name:        "no idle command",
			cfg:         Config{ProcessCommand: "echo editor", TitleCommand: "echo notes"},
			wantProcess: "editor",
			wantTitle:   "notes",
		},
		{
			name:        "idle command garbage",
			cfg:         Config{ProcessCommand: "echo editor", TitleCommand: "echo notes", IdleCommand: "echo soon"},
			wantProcess: "editor",
			wantTitle:   "notes",
		},
		{
			name:        "empty output",
			cfg:         Config{ProcessCommand: "true", TitleCommand: "true"},
			wantProcess: "",
			wantTitle:   "",
		},
		{
			name:    "failing process command",
			cfg:     Config{ProcessCommand: "echo oops >&2; exit 3", TitleCommand: "echo notes"},
			wantErr: true,
		},
		{
			name:    "timeout",
			cfg:     Config{ProcessCommand: "sleep 5", TitleCommand: "echo notes", Timeout: 50 * time.Millisecond},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := NewCommand(tt.cfg, zerolog.Nop()).Sample(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Sample error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if obs.ProcessName != tt.wantProcess || obs.WindowTitle != tt.wantTitle || obs.Idle != tt.wantIdle {
				t.Errorf("Sample = %+v", obs)
			}
		})
	}
}
