package kdf

// KeySchedule holds every piece of key material derived from s0, for
// both roles, per spec §4.2's label list. The engine keeps only the
// local-role and peer-role fields it actually needs (hmackey/zrtp_key
// for each direction, srtp master key/salt for each direction, the
// session key that roots Multistream children, and the SAS).
type KeySchedule struct {
	InitiatorHMACKey []byte
	ResponderHMACKey []byte

	InitiatorZRTPKey []byte
	ResponderZRTPKey []byte

	InitiatorSRTPKey  []byte
	InitiatorSRTPSalt []byte
	ResponderSRTPKey  []byte
	ResponderSRTPSalt []byte

	ZRTPSessionKey []byte

	SAS string
}

// KeyScheduleSizes fixes the byte lengths used throughout; the SRTP
// master key/salt sizes mirror internal/srtp's cipher/auth selection
// (AES-128 key, 112-bit salt) but are parameters here so a 256-bit
// cipher selection can request wider keys.
type KeyScheduleSizes struct {
	HMACKeyBytes     int
	ZRTPKeyBytes     int
	SRTPKeyBytes     int
	SRTPSaltBytes    int
	SessionKeyBytes  int
}

// DefaultSizes matches the teacher's SRTP defaults (AES-128 key, 112-bit
// salt), a 32-byte HMAC key consistent with the S256 hash, and a
// 16-byte (AES-128) ZRTP key.
var DefaultSizes = KeyScheduleSizes{
	HMACKeyBytes:    32,
	ZRTPKeyBytes:    16,
	SRTPKeyBytes:    16,
	SRTPSaltBytes:   14,
	SessionKeyBytes: 32,
}

// DeriveKeySchedule expands s0 into every labeled sub-key per spec
// §4.2's label list, using context = ZIDi || ZIDr || total_hash.
func DeriveKeySchedule(h HashFunc, s0, context []byte, sizes KeyScheduleSizes, sasScheme string) (*KeySchedule, error) {
	ks := &KeySchedule{}
	var err error

	if ks.InitiatorHMACKey, err = KDF(h, s0, LabelInitiatorHMACKey, context, sizes.HMACKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.ResponderHMACKey, err = KDF(h, s0, LabelResponderHMACKey, context, sizes.HMACKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.InitiatorZRTPKey, err = KDF(h, s0, LabelInitiatorZRTPKey, context, sizes.ZRTPKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.ResponderZRTPKey, err = KDF(h, s0, LabelResponderZRTPKey, context, sizes.ZRTPKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.InitiatorSRTPKey, err = KDF(h, s0, LabelInitiatorSRTPKey, context, sizes.SRTPKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.InitiatorSRTPSalt, err = KDF(h, s0, LabelInitiatorSRTPSalt, context, sizes.SRTPSaltBytes*8); err != nil {
		return nil, err
	}
	if ks.ResponderSRTPKey, err = KDF(h, s0, LabelResponderSRTPKey, context, sizes.SRTPKeyBytes*8); err != nil {
		return nil, err
	}
	if ks.ResponderSRTPSalt, err = KDF(h, s0, LabelResponderSRTPSalt, context, sizes.SRTPSaltBytes*8); err != nil {
		return nil, err
	}
	if ks.ZRTPSessionKey, err = KDF(h, s0, LabelZRTPSessionKey, context, sizes.SessionKeyBytes*8); err != nil {
		return nil, err
	}

	sas, err := DeriveSAS(h, s0, context, sasScheme)
	if err != nil {
		return nil, err
	}
	ks.SAS = sas

	return ks, nil
}

// DeriveRetainedSecret computes the successor retained secret rs1' per
// spec §4.2/§6 rotation, using the fixed label and the same context
// shape as every other s0 expansion.
func DeriveRetainedSecret(h HashFunc, s0, context []byte, bytes int) ([]byte, error) {
	return KDF(h, s0, LabelRetainedSecret, context, bytes*8)
}
