package main

import (
	"log"
	"net"

	"github.com/lanikai/zrtp"
)

// endpoint bundles one Engine/Session/Stream with the UDP socket that
// carries its ZRTP traffic. It implements both zrtp.PacketSender (so
// the engine can hand it outbound packets) and zrtp.EventHandler (so
// this demo can print protocol/security transitions as they happen).
type endpoint struct {
	name string
	conn *net.UDPConn
	peer *net.UDPAddr

	engine  *zrtp.Engine
	session *zrtp.Session
	stream  *zrtp.Stream
}

func newEndpoint(name string, conn *net.UDPConn, peer *net.UDPAddr) *endpoint {
	e := &endpoint{name: name, conn: conn, peer: peer}
	var localZID zrtp.ZID
	padded := (name + "-demo-zid-pad")[:12]
	copy(localZID[:], padded)

	e.engine = zrtp.NewEngine(localZID, zrtp.WithEventHandler(e))
	e.session = e.engine.NewSession(zrtp.ZID{})
	return e
}

func (e *endpoint) SendPacket(stream *zrtp.Stream, b []byte) (int, error) {
	return e.conn.WriteToUDP(b, e.peer)
}

func (e *endpoint) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if e.stream == nil {
			continue
		}
		if err := e.stream.HandlePacket(buf[:n]); err != nil {
			log.Printf("%s: HandlePacket: %v", e.name, err)
		}
	}
}

func (e *endpoint) state() zrtp.StreamState {
	if e.stream == nil {
		return zrtp.StateNone
	}
	return e.stream.State()
}

func (e *endpoint) OnProtocolEvent(stream *zrtp.Stream, kind zrtp.ProtocolEvent) {
	log.Printf("%s: protocol event: %s (state=%s)", e.name, kind, stream.State())
}

func (e *endpoint) OnSecurityEvent(stream *zrtp.Stream, kind zrtp.SecurityEvent) {
	log.Printf("%s: security event: %s", e.name, kind)
}

func (e *endpoint) OnSecure(stream *zrtp.Stream) {
	log.Printf("%s: secure, SAS=%s", e.name, stream.Info().SAS)
}

func (e *endpoint) OnNotSecure(stream *zrtp.Stream) {
	log.Printf("%s: not secure", e.name)
}
