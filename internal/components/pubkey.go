package components

import (
	"crypto/ecdh"
	"crypto/rand"
	"io"
	"math/big"

	"github.com/lanikai/zrtp/internal/registry"
)

// PublicKeyScheme is the common shape every negotiable DH/ECDH scheme
// implements: generate an ephemeral key pair, compute the shared
// secret from a peer's public value, and report the wire length of
// that public value (needed by internal/wire.DecodeDHPart, which
// can't infer PV length from the packet alone).
type PublicKeyScheme interface {
	GenerateKeyPair(rnd io.Reader) (priv, pub []byte, err error)
	ComputeShared(priv, peerPub []byte) ([]byte, error)
	PVLen() int
}

func registerPublicKeys(r *registry.Registry) {
	register := func(name string, scheme PublicKeyScheme) {
		r.Register(&registry.Descriptor{
			Name:     name,
			Category: registry.CategoryPublicKey,
			Impl:     scheme,
			SelfTest: func() error { return selfTestPubKey(scheme) },
		})
	}

	register("DH2k", finiteFieldDH{group: modpGroup14})
	register("DH3k", finiteFieldDH{group: modpGroup15})
	register("EC25", ellipticDH{curve: ecdh.P256(), pvLen: 65})
	register("EC38", ellipticDH{curve: ecdh.P384(), pvLen: 97})
}

func selfTestPubKey(scheme PublicKeyScheme) error {
	aPriv, aPub, err := scheme.GenerateKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	bPriv, bPub, err := scheme.GenerateKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	aShared, err := scheme.ComputeShared(aPriv, bPub)
	if err != nil {
		return err
	}
	bShared, err := scheme.ComputeShared(bPriv, aPub)
	if err != nil {
		return err
	}
	if len(aShared) == 0 || string(aShared) != string(bShared) {
		return errSelfTestSize
	}
	return nil
}

// finiteFieldDH implements classic modular-exponentiation
// Diffie-Hellman over one of RFC 3526's MODP groups (DH2k = group 14,
// DH3k = group 15), the scheme the original ZRTP spec's pre-ECDH
// public-key types describe.
type finiteFieldDH struct {
	group *modpGroup
}

func (f finiteFieldDH) GenerateKeyPair(rnd io.Reader) (priv, pub []byte, err error) {
	order := new(big.Int).Sub(f.group.p, big.NewInt(1))

	x, err := rand.Int(rnd, order)
	if err != nil {
		return nil, nil, err
	}
	if x.Sign() == 0 {
		x.SetInt64(2)
	}

	y := new(big.Int).Exp(f.group.g, x, f.group.p)
	return padBig(x, f.PVLen()), padBig(y, f.PVLen()), nil
}

func (f finiteFieldDH) ComputeShared(priv, peerPub []byte) ([]byte, error) {
	x := new(big.Int).SetBytes(priv)
	y := new(big.Int).SetBytes(peerPub)

	// Reject the small-subgroup attack values 1 and p-1 (spec §4.4.2
	// DHPart validation invariant).
	one := big.NewInt(1)
	pMinus1 := new(big.Int).Sub(f.group.p, one)
	if y.Cmp(one) == 0 || y.Cmp(pMinus1) == 0 || y.Sign() == 0 {
		return nil, errWeakDHPublicValue
	}

	shared := new(big.Int).Exp(y, x, f.group.p)
	return padBig(shared, f.PVLen()), nil
}

func (f finiteFieldDH) PVLen() int {
	return (f.group.p.BitLen() + 7) / 8
}

func padBig(v *big.Int, n int) []byte {
	b := v.Bytes()
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// ellipticDH implements ECDH over a stdlib crypto/ecdh curve (EC25 =
// P-256, EC38 = P-384). pvLen is the curve's uncompressed public-point
// encoding length, fixed per curve so PVLen() doesn't need a live key.
type ellipticDH struct {
	curve ecdh.Curve
	pvLen int
}

func (e ellipticDH) GenerateKeyPair(rnd io.Reader) (priv, pub []byte, err error) {
	key, err := e.curve.GenerateKey(rnd)
	if err != nil {
		return nil, nil, err
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

func (e ellipticDH) ComputeShared(priv, peerPub []byte) ([]byte, error) {
	privKey, err := e.curve.NewPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	pubKey, err := e.curve.NewPublicKey(peerPub)
	if err != nil {
		return nil, err
	}
	return privKey.ECDH(pubKey)
}

func (e ellipticDH) PVLen() int {
	return e.pvLen
}
