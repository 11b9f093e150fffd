package components

import "golang.org/x/xerrors"

var (
	errSelfTestSize      = xerrors.New("components: self-test produced wrong-sized output")
	errWeakDHPublicValue = xerrors.New("components: peer DH public value is 1, p-1, or 0")
)
