package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/chatrelay/chatrelay/internal/appid"
)

func TestAppIdentityResolvesChatrelay(t *testing.T) {
	identity, err := appid.Get(context.Background())
	if err != nil {
		t.Fatalf("failed to load app identity: %v", err)
	}
	if identity == nil {
		t.Fatal("app identity is nil")
	}

	if identity.BinaryName != "chatrelay" {
		t.Errorf("expected binary name chatrelay, got %q", identity.BinaryName)
	}
	if identity.ConfigName == "" {
		t.Error("expected config_name to be set")
	}
	if identity.Vendor == "" {
		t.Error("expected vendor to be set")
	}

	// Viper strips the trailing underscore before applying the prefix,
	// so the identity must carry one.
	if !strings.HasSuffix(identity.EnvPrefix, "_") {
		t.Errorf("expected env_prefix to end with underscore, got %q", identity.EnvPrefix)
	}
}
