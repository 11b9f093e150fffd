package zrtp

import (
	"github.com/lanikai/zrtp/internal/components"
	"github.com/lanikai/zrtp/internal/config"
	"github.com/lanikai/zrtp/internal/registry"
)

// advertisedLists returns this stream's advertised component lists in
// local-preference order, restricted to whatever the registry reports
// as self-test-passing (spec §4.3).
func advertisedLists(e *Engine, profile *config.SessionProfile) (hashes, ciphers, authtags, pubkeys, sas []string) {
	r := e.registry
	filter := func(cat registry.Category, prefs []string) []string {
		avail := make(map[string]bool)
		for _, n := range r.Available(cat) {
			avail[n] = true
		}
		var out []string
		for _, p := range prefs {
			if avail[p] {
				out = append(out, p)
			}
		}
		return out
	}
	return filter(registry.CategoryHash, profile.HashPreferences),
		filter(registry.CategoryCipher, profile.CipherPreferences),
		filter(registry.CategoryAuthTag, profile.AuthTagPreferences),
		filter(registry.CategoryPublicKey, profile.PublicKeyPreferences),
		filter(registry.CategorySAS, profile.SASPreferences)
}

// pickComponent intersects local preference order against the peer's
// advertised list (spec §4.3 "the Commit sender picks, from its own
// preference order, the first scheme the peer also advertised").
func pickComponent(localPrefs, peerAdvertised []string) (string, bool) {
	return registry.Intersect(localPrefs, peerAdvertised)
}

func hashFactoryFor(e *Engine, name string) (components.HashFactory, bool) {
	d, ok := e.registry.Lookup(registry.CategoryHash, name)
	if !ok {
		return nil, false
	}
	f, ok := d.Impl.(components.HashFactory)
	return f, ok
}

func pubKeySchemeFor(e *Engine, name string) (components.PublicKeyScheme, bool) {
	d, ok := e.registry.Lookup(registry.CategoryPublicKey, name)
	if !ok {
		return nil, false
	}
	scheme, ok := d.Impl.(components.PublicKeyScheme)
	return scheme, ok
}

func cipherSpecFor(e *Engine, name string) (components.CipherSpec, bool) {
	d, ok := e.registry.Lookup(registry.CategoryCipher, name)
	if !ok {
		return components.CipherSpec{}, false
	}
	spec, ok := d.Impl.(components.CipherSpec)
	return spec, ok
}
