// Command zrtpdemo runs a minimal two-endpoint ZRTP handshake over a
// UDP loopback pair, then demonstrates SRTP-protecting one RTP-shaped
// payload in each direction once the streams reach Secure. It exists
// to exercise the engine end to end without a real signaling stack —
// compare the teacher's root main.go, which did the same job for a
// WebRTC peer connection over a websocket signaling bridge.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/net/ipv4"

	"github.com/lanikai/zrtp"
)

func main() {
	flag.Parse()
	if flagHelp {
		help()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	aliceConn, bobConn, err := loopbackUDPPair()
	if err != nil {
		log.Fatalf("zrtpdemo: %v", err)
	}
	defer aliceConn.Close()
	defer bobConn.Close()

	alice := newEndpoint("alice", aliceConn, bobConn.LocalAddr().(*net.UDPAddr))
	bob := newEndpoint("bob", bobConn, aliceConn.LocalAddr().(*net.UDPAddr))

	go alice.readLoop()
	go bob.readLoop()

	aliceStream := alice.session.NewStream(0x1000, alice, zrtp.ProfileRTP)
	bobStream := bob.session.NewStream(0x2000, bob, zrtp.ProfileRTP)
	alice.stream, bob.stream = aliceStream, bobStream

	if err := aliceStream.Start(); err != nil {
		log.Fatalf("zrtpdemo: alice start: %v", err)
	}
	if err := bobStream.Start(); err != nil {
		log.Fatalf("zrtpdemo: bob start: %v", err)
	}

	deadline := time.After(10 * time.Second)
	for alice.state() != zrtp.StateSecure || bob.state() != zrtp.StateSecure {
		select {
		case <-deadline:
			log.Fatalf("zrtpdemo: handshake did not reach Secure within 10s (alice=%s bob=%s)",
				alice.state(), bob.state())
		case <-time.After(20 * time.Millisecond):
		}
	}

	fmt.Printf("alice SAS: %s\nbob   SAS: %s\n", aliceStream.Info().SAS, bobStream.Info().SAS)
	if aliceStream.Info().SAS != bobStream.Info().SAS {
		log.Fatal("zrtpdemo: SAS mismatch between endpoints")
	}

	aliceStream.ConfirmSAS(true)
	bobStream.ConfirmSAS(true)

	fmt.Println("handshake complete, both streams secure")

	if err := exchangeSecureMedia("alice->bob", aliceStream, bobStream, 0x1000); err != nil {
		log.Fatalf("zrtpdemo: %v", err)
	}
	if err := exchangeSecureMedia("bob->alice", bobStream, aliceStream, 0x2000); err != nil {
		log.Fatalf("zrtpdemo: %v", err)
	}
}

// exchangeSecureMedia builds one RTP-shaped packet, protects it on the
// sending stream's media path, unprotects it on the receiving stream's,
// and checks the payload round-trips — a stand-in for the real RTP
// stack that would otherwise call ProtectRTP/UnprotectRTP per packet.
func exchangeSecureMedia(label string, from, to *zrtp.Stream, ssrc uint32) error {
	payload := []byte("zrtpdemo secure media payload")
	plaintext := make([]byte, 12+len(payload))
	plaintext[0] = 2 << 6 // V=2
	binary.BigEndian.PutUint32(plaintext[8:12], ssrc)
	copy(plaintext[12:], payload)

	ciphertext, err := from.ProtectRTP(plaintext)
	if err != nil {
		return fmt.Errorf("%s: ProtectRTP: %w", label, err)
	}

	recovered, err := to.UnprotectRTP(ciphertext)
	if err != nil {
		return fmt.Errorf("%s: UnprotectRTP: %w", label, err)
	}
	if string(recovered) != string(payload) {
		return fmt.Errorf("%s: SRTP round trip mismatch: got %q, want %q", label, recovered, payload)
	}

	fmt.Printf("%s: SRTP round trip OK (%d bytes protected)\n", label, len(ciphertext))
	return nil
}

// loopbackUDPPair opens two UDP sockets on 127.0.0.1 bound to ephemeral
// ports, each other's correspondent.
func loopbackUDPPair() (*net.UDPConn, *net.UDPConn, error) {
	a, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, nil, err
	}
	b, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	// Sets an explicit IP TTL on alice's socket; on loopback it has no
	// effect on delivery.
	_ = ipv4.NewConn(a).SetTTL(64)
	return a, b, nil
}
