// Package config decodes a host-supplied generic configuration map into
// a strongly typed SessionProfile (spec §6 "Session profile"), using
// mapstructure the way a host embedding this engine would load profile
// settings out of its own YAML/JSON/env-derived config tree without
// this package needing to know that tree's shape.
package config

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/xerrors"
)

// LicenseMode controls whether this endpoint may initiate (Commit) a
// ZRTP exchange.
type LicenseMode int

const (
	LicensePassive LicenseMode = iota
	LicenseActive
	LicenseUnlimited
)

var licenseModeNames = map[string]LicenseMode{
	"passive":   LicensePassive,
	"active":    LicenseActive,
	"unlimited": LicenseUnlimited,
}

// MiTMRole distinguishes a plain endpoint from a trusted SAS-relay
// man-in-the-middle (e.g. a recording SBC).
type MiTMRole int

const (
	MiTMRolePlainEndpoint MiTMRole = iota
	MiTMRoleTrustedMiTM
)

var mitmRoleNames = map[string]MiTMRole{
	"plain": MiTMRolePlainEndpoint,
	"mitm":  MiTMRoleTrustedMiTM,
}

// PresharedMaxAllowed is the default compile-time cap on consecutive
// Preshared-mode uses before the engine forces a fresh DH stream to
// restore key continuity (spec §3 invariant; original_source
// PRESHARED_MAX_ALLOWED = 20). Exposed as a SessionProfile field with
// this default so a host can override it.
const PresharedMaxAllowed = 20

// DefaultCacheTTL mirrors original_source's CACHE_DEFAULT_TTL (30
// days).
const DefaultCacheTTL = 30 * 24 * time.Hour

// SessionProfile is the full set of host-controllable session options
// (spec §6).
type SessionProfile struct {
	License LicenseMode `mapstructure:"license"`
	MiTM    MiTMRole    `mapstructure:"mitm_role"`

	AllowClear    bool `mapstructure:"allowclear"`
	AutoSecure    bool `mapstructure:"autosecure"`
	DiscloseBit   bool `mapstructure:"disclose_bit"`

	// DiscoveryOptimization permits sending Commit instead of HelloAck
	// to save one round trip. Default false: see DESIGN.md Open
	// Question decision (the spec itself warns this can confuse slow
	// peers computing DH, and gives no validated timing constants).
	DiscoveryOptimization bool `mapstructure:"discovery_optimization"`

	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	PresharedMaxAllowed int `mapstructure:"preshared_max_allowed"`

	HashPreferences     []string `mapstructure:"hash_preferences"`
	CipherPreferences   []string `mapstructure:"cipher_preferences"`
	AuthTagPreferences  []string `mapstructure:"authtag_preferences"`
	PublicKeyPreferences []string `mapstructure:"pktype_preferences"`
	SASPreferences      []string `mapstructure:"sas_preferences"`
}

// Default returns a SessionProfile with the engine's baseline
// preference lists and conservative defaults.
func Default() *SessionProfile {
	return &SessionProfile{
		License:               LicenseActive,
		MiTM:                  MiTMRolePlainEndpoint,
		AllowClear:            false,
		AutoSecure:            true,
		DiscloseBit:           false,
		DiscoveryOptimization: false,
		CacheTTL:              DefaultCacheTTL,
		PresharedMaxAllowed:   PresharedMaxAllowed,
		HashPreferences:       []string{"S256", "S384", "SKN2", "S512"},
		CipherPreferences:     []string{"AES1", "AES2", "AES3", "2FS1"},
		AuthTagPreferences:    []string{"HS32", "HS80"},
		PublicKeyPreferences:  []string{"DH3k", "EC25", "EC38", "DH2k"},
		SASPreferences:        []string{"B32 "},
	}
}

// enumDecodeHook lets the profile map use human-readable strings
// ("passive", "mitm") while the struct fields stay typed enums.
func enumDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)

	switch to {
	case reflect.TypeOf(LicenseMode(0)):
		if m, ok := licenseModeNames[s]; ok {
			return m, nil
		}
		return nil, xerrors.Errorf("config: unknown license mode %q", s)
	case reflect.TypeOf(MiTMRole(0)):
		if m, ok := mitmRoleNames[s]; ok {
			return m, nil
		}
		return nil, xerrors.Errorf("config: unknown MiTM role %q", s)
	}
	return data, nil
}

// Decode fills a SessionProfile (starting from Default()) from a
// generic map, e.g. the result of unmarshaling a host's YAML/JSON/env
// config into map[string]interface{}.
func Decode(raw map[string]interface{}) (*SessionProfile, error) {
	profile := Default()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           profile,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			enumDecodeHook,
		),
	})
	if err != nil {
		return nil, xerrors.Errorf("config: building decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, xerrors.Errorf("config: decoding session profile: %w", err)
	}
	return profile, nil
}
