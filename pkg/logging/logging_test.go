package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		dev     bool
		want    zapcore.Level
		wantErr bool
	}{
		{"", false, zapcore.InfoLevel, false},
		{"debug", true, zapcore.DebugLevel, false},
		{"warn", false, zapcore.WarnLevel, false},
		{"loud", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level, tt.dev)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("New(%q) does not enable %v", tt.level, tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("New(%q) enables %v", tt.level, tt.want-1)
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("OrNop(nil) = nil")
	}
}
