package appidentityassets

import _ "embed"

// YAML is the embedded app identity, used when no external `.fulmen/app.yaml`
// can be found so the standalone binary still knows who it is.
//
//go:embed app.yaml
var YAML []byte
