// Package appid resolves the application identity, falling back to the
// embedded chatrelay identity when no external `.fulmen/app.yaml` exists.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/chatrelay/chatrelay/internal/assets/appidentity"
)

func init() {
	// Registration is best-effort: explicit overrides (Options.ExplicitPath
	// and FULMEN_APP_IDENTITY_PATH) stay authoritative, the embedded copy
	// only covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the resolved application identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}
