package appid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/chatrelay/chatrelay/internal/assets/appidentity"
)

// resetIdentity clears the process-wide identity cache and re-registers
// the embedded copy so each test starts from standalone-binary state.
func resetIdentity(t *testing.T) {
	t.Helper()

	appidentity.Reset()
	if err := appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML); err != nil {
		t.Fatalf("RegisterEmbeddedIdentityYAML: %v", err)
	}
	t.Cleanup(func() { appidentity.Reset() })
}

func TestGetUsesEmbeddedIdentityOutsideRepo(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	// A temp dir has no .fulmen/app.yaml above it.
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	identity, err := Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if identity.BinaryName != "chatrelay" {
		t.Fatalf("expected embedded binary name chatrelay, got %q", identity.BinaryName)
	}
	if identity.EnvPrefix != "CHATRELAY_" {
		t.Fatalf("expected env prefix CHATRELAY_, got %q", identity.EnvPrefix)
	}
}

func TestGetHonorsExplicitPathOverEmbedded(t *testing.T) {
	resetIdentity(t)

	missing := filepath.Join(t.TempDir(), "missing-app.yaml")
	t.Setenv(appidentity.EnvIdentityPath, missing)

	_, err := Get(context.Background())
	if err == nil {
		t.Fatal("expected error for missing explicit identity path")
	}

	var notFound *appidentity.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}
