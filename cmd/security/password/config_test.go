package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"AUTHORITY_ARGON2_MEMORY_KIB",
		"AUTHORITY_ARGON2_ITERATIONS",
		"AUTHORITY_ARGON2_PARALLELISM",
		"AUTHORITY_ARGON2_SALT_LEN",
		"AUTHORITY_ARGON2_KEY_LEN",
	} {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg.Params)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("AUTHORITY_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("AUTHORITY_ARGON2_ITERATIONS", "4")
	t.Setenv("AUTHORITY_ARGON2_PARALLELISM", "2")
	t.Setenv("AUTHORITY_ARGON2_SALT_LEN", "24")
	t.Setenv("AUTHORITY_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_OutOfRange(t *testing.T) {
	t.Setenv("AUTHORITY_ARGON2_ITERATIONS", "99")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
