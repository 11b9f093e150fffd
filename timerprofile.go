package zrtp

// TimerProfile labels how a stream's ZRTP messages travel: inline in
// RTP, or alongside call-setup signaling (spec §11 MiTM-CSD mode). The
// stream records the profile it was created with; the retransmission
// timings do not depend on it, and both profiles use the same T1/T2/T3
// cadence.
type TimerProfile int

const (
	// ProfileRTP is the default: retransmissions ride the RTP stream
	// itself, with the T1/T2/T3 cadence from spec §4.5.
	ProfileRTP TimerProfile = iota

	// ProfileCSD marks call-signaling-delivered ZRTP (spec §11 MiTM-CSD
	// mode), where messages travel alongside call-setup signaling rather
	// than inline RTP. It does not change the retransmission cadence.
	ProfileCSD
)

func (p TimerProfile) String() string {
	if p == ProfileCSD {
		return "csd"
	}
	return "rtp"
}
