package zrtp_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lanikai/zrtp"
	"github.com/lanikai/zrtp/internal/config"
	"github.com/lanikai/zrtp/internal/wire"
)

// pipeSender delivers every packet it's handed straight to a peer
// Stream's HandlePacket, simulating an RTP transport without opening a
// real socket (compare a fake net.PacketConn the teacher's ICE tests
// use for the same reason).
type pipeSender struct {
	mu   sync.Mutex
	peer *zrtp.Stream
}

func (p *pipeSender) setPeer(s *zrtp.Stream) {
	p.mu.Lock()
	p.peer = s
	p.mu.Unlock()
}

func (p *pipeSender) SendPacket(_ *zrtp.Stream, b []byte) (int, error) {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer == nil {
		return len(b), nil
	}
	cp := append([]byte(nil), b...)
	go peer.HandlePacket(cp)
	return len(b), nil
}

func newTestZID(seed string) zrtp.ZID {
	var z zrtp.ZID
	padded := (seed + "------------")[:12]
	copy(z[:], padded)
	return z
}

func waitForState(t *testing.T, s *zrtp.Stream, want zrtp.StreamState, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stream did not reach state %s within %s (last state %s)", want, timeout, s.State())
}

func TestDHHandshakeReachesSecureWithMatchingSAS(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice"), newTestZID("bob")

	aliceEngine := zrtp.NewEngine(aliceZID)
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender := &pipeSender{}
	bobSender := &pipeSender{}

	aliceStream := aliceSession.NewStream(0x1111, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0x2222, bobSender, zrtp.ProfileRTP)

	aliceSender.setPeer(bobStream)
	bobSender.setPeer(aliceStream)

	require.NoError(t, aliceStream.Start())
	require.NoError(t, bobStream.Start())

	waitForState(t, aliceStream, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream, zrtp.StateSecure, 5*time.Second)

	aliceSAS := aliceStream.Info().SAS
	bobSAS := bobStream.Info().SAS
	require.NotEmpty(t, aliceSAS)
	require.Equal(t, aliceSAS, bobSAS)

	require.NoError(t, aliceStream.ConfirmSAS(true))
	require.NoError(t, bobStream.ConfirmSAS(true))
}

func TestMultistreamSkipsDHAfterFirstSecureStream(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice2"), newTestZID("bob2")

	aliceEngine := zrtp.NewEngine(aliceZID)
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender1, bobSender1 := &pipeSender{}, &pipeSender{}
	aliceStream1 := aliceSession.NewStream(0x3333, aliceSender1, zrtp.ProfileRTP)
	bobStream1 := bobSession.NewStream(0x4444, bobSender1, zrtp.ProfileRTP)
	aliceSender1.setPeer(bobStream1)
	bobSender1.setPeer(aliceStream1)

	require.NoError(t, aliceStream1.Start())
	require.NoError(t, bobStream1.Start())
	waitForState(t, aliceStream1, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream1, zrtp.StateSecure, 5*time.Second)

	aliceSender2, bobSender2 := &pipeSender{}, &pipeSender{}
	aliceStream2 := aliceSession.NewStream(0x5555, aliceSender2, zrtp.ProfileRTP)
	bobStream2 := bobSession.NewStream(0x6666, bobSender2, zrtp.ProfileRTP)
	aliceSender2.setPeer(bobStream2)
	bobSender2.setPeer(aliceStream2)

	require.NoError(t, aliceStream2.Start())
	require.NoError(t, bobStream2.Start())
	waitForState(t, aliceStream2, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream2, zrtp.StateSecure, 5*time.Second)

	require.Equal(t, "Mult", aliceStream2.Info().PublicKey)
	require.Equal(t, "Mult", bobStream2.Info().PublicKey)
}

// countingSender wraps a pipeSender and counts how many packets of
// each ZRTP message type it has forwarded, so a test can tell a
// replayed packet apart from a freshly processed one by whether it
// provoked a new reply.
type countingSender struct {
	pipeSender
	mu     sync.Mutex
	counts map[wire.Type]int
}

func newCountingSender() *countingSender {
	return &countingSender{counts: make(map[wire.Type]int)}
}

func (c *countingSender) SendPacket(s *zrtp.Stream, b []byte) (int, error) {
	if p, err := wire.ParsePacket(b); err == nil {
		c.mu.Lock()
		c.counts[p.Message.Type]++
		c.mu.Unlock()
	}
	return c.pipeSender.SendPacket(s, b)
}

func (c *countingSender) count(t wire.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}

// capturingSender records the most recent packet handed to it, so a
// test can pull out a real, fully-formed wire packet (e.g. a Hello)
// without reimplementing message construction.
type capturingSender struct {
	mu   sync.Mutex
	last []byte
}

func (c *capturingSender) SendPacket(_ *zrtp.Stream, b []byte) (int, error) {
	c.mu.Lock()
	c.last = append([]byte(nil), b...)
	c.mu.Unlock()
	return len(b), nil
}

func (c *capturingSender) waitForType(t *testing.T, want wire.Type, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		b := c.last
		c.mu.Unlock()
		if b != nil {
			if p, err := wire.ParsePacket(b); err == nil && p.Message.Type == want {
				return b
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never captured a %s packet", want)
	return nil
}

// TestInboundReplayDetectionDropsOlderSequence covers testable scenario
// D: a recorded Hello replayed with the same (hence non-advancing)
// sequence number must be dropped as a ZRTP replay, leaving the state
// machine unaffected — in particular, it must not provoke a second
// HelloAck.
func TestInboundReplayDetectionDropsOlderSequence(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice-replay"), newTestZID("bob-replay")

	aliceEngine := zrtp.NewEngine(aliceZID)
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender := &capturingSender{}
	bobSender := newCountingSender()

	aliceStream := aliceSession.NewStream(0x7777, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0x8888, bobSender, zrtp.ProfileRTP)

	require.NoError(t, aliceStream.Start())
	hello := aliceSender.waitForType(t, wire.TypeHello, time.Second)

	require.NoError(t, bobStream.HandlePacket(hello))
	firstHelloAcks := bobSender.count(wire.TypeHelloAck)
	require.Equal(t, 1, firstHelloAcks)

	err := bobStream.HandlePacket(hello)
	require.Error(t, err, "a replayed Hello must be rejected")
	require.Equal(t, firstHelloAcks, bobSender.count(wire.TypeHelloAck),
		"a replayed Hello must not provoke a second HelloAck")
}

// TestCommitTieBreakConverges covers testable property 7: when both
// sides are licensed to initiate and start at effectively the same
// time, both send Commit (glare), but the session still converges to
// exactly one Initiator and one Responder, reaching Secure with a
// matching SAS.
func TestCommitTieBreakConverges(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice-glare"), newTestZID("bob-glare")

	aliceEngine := zrtp.NewEngine(aliceZID)
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender, bobSender := &pipeSender{}, &pipeSender{}
	aliceStream := aliceSession.NewStream(0x9999, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0xAAAA, bobSender, zrtp.ProfileRTP)
	aliceSender.setPeer(bobStream)
	bobSender.setPeer(aliceStream)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); require.NoError(t, aliceStream.Start()) }()
	go func() { defer wg.Done(); require.NoError(t, bobStream.Start()) }()
	wg.Wait()

	waitForState(t, aliceStream, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream, zrtp.StateSecure, 5*time.Second)

	require.Equal(t, aliceStream.Info().SAS, bobStream.Info().SAS)
	require.NotEmpty(t, aliceStream.Info().SAS)
}

// TestGoClearTearsDownSecureSRTP covers testable property 8's
// allowclear=true branch: a successful GoClear exchange destroys both
// streams' SRTP contexts, so a subsequent ProtectRTP/UnprotectRTP call
// fails instead of silently using stale keys.
func TestGoClearTearsDownSecureSRTP(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice-clear"), newTestZID("bob-clear")

	aliceProfile, bobProfile := config.Default(), config.Default()
	aliceProfile.AllowClear, bobProfile.AllowClear = true, true

	aliceEngine := zrtp.NewEngine(aliceZID, zrtp.WithProfile(aliceProfile))
	bobEngine := zrtp.NewEngine(bobZID, zrtp.WithProfile(bobProfile))

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender, bobSender := &pipeSender{}, &pipeSender{}
	aliceStream := aliceSession.NewStream(0xB000, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0xB111, bobSender, zrtp.ProfileRTP)
	aliceSender.setPeer(bobStream)
	bobSender.setPeer(aliceStream)

	require.NoError(t, aliceStream.Start())
	require.NoError(t, bobStream.Start())
	waitForState(t, aliceStream, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream, zrtp.StateSecure, 5*time.Second)

	plaintext := make([]byte, 12+8)
	plaintext[0] = 2 << 6
	_, err := aliceStream.ProtectRTP(plaintext)
	require.NoError(t, err, "stream must be able to protect RTP while Secure")

	require.NoError(t, aliceStream.GoClear())

	waitForState(t, aliceStream, zrtp.StateClear, 5*time.Second)
	waitForState(t, bobStream, zrtp.StateClear, 5*time.Second)

	_, err = aliceStream.ProtectRTP(plaintext)
	require.Error(t, err, "ProtectRTP must fail once SRTP has been torn down by GoClear")
	_, err = bobStream.ProtectRTP(plaintext)
	require.Error(t, err, "the GoClear peer's SRTP context must be torn down too")
}

// TestGoClearRejectedWhenPolicyForbidsIt covers testable property 8's
// allowclear=false branch: GoClear is refused locally and the stream
// stays Secure.
func TestGoClearRejectedWhenPolicyForbidsIt(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice-noclear"), newTestZID("bob-noclear")

	aliceEngine := zrtp.NewEngine(aliceZID) // default profile: AllowClear=false
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender, bobSender := &pipeSender{}, &pipeSender{}
	aliceStream := aliceSession.NewStream(0xB222, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0xB333, bobSender, zrtp.ProfileRTP)
	aliceSender.setPeer(bobStream)
	bobSender.setPeer(aliceStream)

	require.NoError(t, aliceStream.Start())
	require.NoError(t, bobStream.Start())
	waitForState(t, aliceStream, zrtp.StateSecure, 5*time.Second)
	waitForState(t, bobStream, zrtp.StateSecure, 5*time.Second)

	require.Error(t, aliceStream.GoClear())
	require.Equal(t, zrtp.StateSecure, aliceStream.State())

	plaintext := make([]byte, 12+8)
	plaintext[0] = 2 << 6
	_, err := aliceStream.ProtectRTP(plaintext)
	require.NoError(t, err, "SRTP must continue uninterrupted when GoClear is refused")
}

// mitmPVSender sits between the initiator and responder, tampering
// with exactly one DHPart message's public value before delivering it
// — simulating testable scenario C, "MitM pv attack": a man in the
// middle substitutes the small-subgroup value 1 for the responder's DH
// public value.
type mitmPVSender struct {
	pipeSender
	tamperOnce sync.Once
	errs       chan error
}

func (m *mitmPVSender) SendPacket(s *zrtp.Stream, b []byte) (int, error) {
	if tampered, ok := tamperDHPartWeakPV(b); ok {
		m.tamperOnce.Do(func() {
			b = tampered
		})
	}

	m.mu.Lock()
	peer := m.peer
	m.mu.Unlock()
	if peer == nil {
		return len(b), nil
	}
	cp := append([]byte(nil), b...)
	go func() {
		err := peer.HandlePacket(cp)
		if err != nil {
			select {
			case m.errs <- err:
			default:
			}
		}
	}()
	return len(b), nil
}

// tamperDHPartWeakPV rewrites a DHPart1/DHPart2 message's public value
// to 1 (padded to the field's existing width), the small-subgroup
// value internal/components' finiteFieldDH rejects.
func tamperDHPartWeakPV(buf []byte) ([]byte, bool) {
	p, err := wire.ParsePacket(buf)
	if err != nil {
		return nil, false
	}
	if p.Message.Type != wire.TypeDHPart1 && p.Message.Type != wire.TypeDHPart2 {
		return nil, false
	}

	const dhPartFixedFields = 32 + 4*8 + 8 // H1 + four 8-byte secret IDs + MAC
	pvLen := len(p.Message.Body) - dhPartFixedFields
	if pvLen <= 0 {
		return nil, false
	}

	body := append([]byte(nil), p.Message.Body...)
	pvStart := 32 + 4*8
	for i := 0; i < pvLen-1; i++ {
		body[pvStart+i] = 0
	}
	body[pvStart+pvLen-1] = 1

	return wire.BuildPacket(uint16(p.SequenceNumber), p.SSRC, p.Message.Type, body), true
}

func TestMitMWeakPublicValueRejected(t *testing.T) {
	aliceZID, bobZID := newTestZID("alice-mitm"), newTestZID("bob-mitm")

	aliceEngine := zrtp.NewEngine(aliceZID)
	bobEngine := zrtp.NewEngine(bobZID)

	aliceSession := aliceEngine.NewSession(bobZID)
	bobSession := bobEngine.NewSession(aliceZID)

	aliceSender := &pipeSender{}
	bobSender := &mitmPVSender{errs: make(chan error, 4)}

	aliceStream := aliceSession.NewStream(0xC000, aliceSender, zrtp.ProfileRTP)
	bobStream := bobSession.NewStream(0xC111, bobSender, zrtp.ProfileRTP)
	aliceSender.setPeer(bobStream)
	bobSender.setPeer(aliceStream)

	require.NoError(t, aliceStream.Start())
	require.NoError(t, bobStream.Start())

	select {
	case err := <-bobSender.errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected the tampered DHPart1 to be rejected by the initiator")
	}

	require.NotEqual(t, zrtp.StateSecure, aliceStream.State())
}
