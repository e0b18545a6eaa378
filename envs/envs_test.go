package envs

import (
	"log/slog"
	"slices"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	envs, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if envs.PyroPort != "6379" {
		t.Errorf("PyroPort = %q", envs.PyroPort)
	}
	if envs.FlushInterval != 10*time.Second || envs.DataExpirationInterval != time.Minute {
		t.Errorf("intervals = %v, %v", envs.FlushInterval, envs.DataExpirationInterval)
	}
	if !slices.Equal(envs.SaveRules, []string{"900 1", "300 10", "60 10000"}) {
		t.Errorf("SaveRules = %q", envs.SaveRules)
	}
	if envs.AuthUsername != "USER" || envs.AuthPassword != "PASS" {
		t.Errorf("credentials = %q/%q", envs.AuthUsername, envs.AuthPassword)
	}
	if envs.DefaultTTLDuration() != 0 {
		t.Errorf("DefaultTTLDuration = %v", envs.DefaultTTLDuration())
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PYRO_PORT", "7000")
	t.Setenv("FLUSH_INTERVAL", "2s")
	t.Setenv("SAVE_RULES", "5 1")
	t.Setenv("DEFAULT_TTL", "30")
	t.Setenv("LOG_LEVEL", "DEBUG")

	envs, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if envs.PyroPort != "7000" || envs.FlushInterval != 2*time.Second {
		t.Errorf("overrides ignored: %+v", envs)
	}
	if !slices.Equal(envs.SaveRules, []string{"5 1"}) {
		t.Errorf("SaveRules = %q", envs.SaveRules)
	}
	if envs.DefaultTTLDuration() != 30*time.Second {
		t.Errorf("DefaultTTLDuration = %v", envs.DefaultTTLDuration())
	}
	if envs.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel = %v", envs.SlogLevel())
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"FLUSH_INTERVAL":           "soon",
		"DEFAULT_TTL":              "-1",
		"DATA_EXPIRATION_INTERVAL": "0s",
	}

	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			if _, err := Parse(); err == nil {
				t.Errorf("%s=%q accepted", name, value)
			}
		})
	}
}
