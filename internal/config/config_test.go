package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLATFORM_FEE_BPS", "")
	t.Setenv("PAYMENT_TIMEOUT_HOURS", "")
	t.Setenv("AUTO_REJECT_SIBLINGS", "")

	cfg := Load()
	if cfg.PlatformFeeBPS != 500 {
		t.Errorf("PlatformFeeBPS = %d, want 500", cfg.PlatformFeeBPS)
	}
	if cfg.PaymentTimeout != 336*time.Hour {
		t.Errorf("PaymentTimeout = %v, want 336h", cfg.PaymentTimeout)
	}
	if cfg.AutoRejectSiblings {
		t.Error("AutoRejectSiblings should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLATFORM_FEE_BPS", "250")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("AUTO_REJECT_SIBLINGS", "true")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg := Load()
	if cfg.PlatformFeeBPS != 250 {
		t.Errorf("PlatformFeeBPS = %d, want 250", cfg.PlatformFeeBPS)
	}
	if cfg.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", cfg.Currency)
	}
	if !cfg.AutoRejectSiblings || !cfg.UseMemoryStorage() {
		t.Error("bool and driver overrides not applied")
	}
}

func TestValidateClampsFee(t *testing.T) {
	cfg := &Config{PlatformFeeBPS: 12000, StorageDriver: "sqlite"}
	cfg.Validate(zap.NewNop())
	if cfg.PlatformFeeBPS != 500 {
		t.Errorf("PlatformFeeBPS = %d, want 500", cfg.PlatformFeeBPS)
	}
	if cfg.StorageDriver != StoragePostgres {
		t.Errorf("StorageDriver = %q, want postgres", cfg.StorageDriver)
	}
}

func TestParseUUIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := parseUUIDList(a.String() + ", not-a-uuid ," + b.String() + ",")
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("parseUUIDList = %v", got)
	}
	if parseUUIDList("") != nil {
		t.Error("empty list should be nil")
	}
}
