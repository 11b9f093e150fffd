package components

import "github.com/lanikai/zrtp/internal/registry"

// RegisterDefaults wires every built-in hash, cipher, public-key,
// auth-tag, and SAS component into r. Called once when an Engine is
// constructed with no host-supplied registry.
func RegisterDefaults(r *registry.Registry) {
	registerHashes(r)
	registerCiphers(r)
	registerPublicKeys(r)
	registerAuthTags(r)
	registerSAS(r)
}
