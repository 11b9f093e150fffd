package srtp

import "golang.org/x/xerrors"

var (
	// ErrAuthFailed is returned when an SRTP/SRTCP auth tag does not
	// verify; the caller should drop the packet without modifying any
	// stream state.
	ErrAuthFailed = xerrors.New("srtp: authentication failed")

	// ErrReplay is returned when a packet's extended index falls
	// outside the replay window or has already been marked seen.
	ErrReplay = xerrors.New("srtp: replayed packet")
)
