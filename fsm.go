package zrtp

import (
	"crypto/rand"
	"crypto/sha256"
	"hash"

	"github.com/lanikai/zrtp/internal/config"
	"github.com/lanikai/zrtp/internal/kdf"
	"github.com/lanikai/zrtp/internal/srtp"
	"github.com/lanikai/zrtp/internal/wire"
)

// Start sends the initial Hello and begins T1-cadence retransmission
// (spec §4.5, §7.1 "discovery").
func (s *Stream) Start() error {
	s.mu.Lock()
	if s.state != StateNone {
		s.mu.Unlock()
		return errAlreadyStarted
	}
	s.mu.Unlock()

	if err := s.prepareLocalHello(); err != nil {
		return err
	}
	s.setState(StateStart)

	task := &RetryTask{
		Family: FamilyT1,
		Timing: TimingT1,
		Fire: func(retry int) bool {
			if retry >= NoZRTPFastCount {
				s.session.engine.handler.OnProtocolEvent(s, EventNoZRTPQuick)
			}
			s.sendHello()
			return s.State() == StateWaitHelloAck || s.State() == StateStart
		},
	}
	s.mu.Lock()
	s.helloRetry = task
	s.mu.Unlock()
	s.setState(StateWaitHelloAck)
	s.session.engine.scheduler.CallLater(s, task)

	return nil
}

func (s *Stream) prepareLocalHello() error {
	hashes, ciphers, authtags, pubkeys, sasTypes := advertisedLists(s.session.engine, s.session.profile)
	if len(hashes) == 0 || len(ciphers) == 0 || len(authtags) == 0 || len(pubkeys) == 0 || len(sasTypes) == 0 {
		return errNoUsableComponents
	}

	chain, err := wire.NewHashChain(sha256Chain)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.chain = chain
	s.localHello = &wire.Hello{
		Version:    "1.10",
		ClientID:   "zrtp-go",
		H3:         chain.H3,
		ZID:        s.session.localZID,
		MiTM:       s.session.profile.MiTM == config.MiTMRoleTrustedMiTM,
		Passive:    s.session.profile.License == config.LicensePassive,
		Hashes:     hashes,
		Ciphers:    ciphers,
		AuthTags:   authtags,
		PublicKeys: pubkeys,
		SASTypes:   sasTypes,
	}
	s.mu.Unlock()
	return nil
}

func (s *Stream) sendHello() {
	s.mu.Lock()
	h := s.localHello
	s.mu.Unlock()
	if h == nil {
		return
	}
	body := h.Encode()
	// MAC over the body is only meaningful once H2 (published in the
	// following Commit) is known to the peer; Hello's own MAC field is
	// left zero, matching spec §4.4's note that Hello is authenticated
	// retroactively by the hash chain, not by a MAC of its own body.
	s.sendMessage(wire.TypeHello, body)
}

func (s *Stream) sendMessage(t wire.Type, body []byte) {
	pkt := wire.BuildPacket(s.nextSeq(), s.ssrc, t, body)
	s.session.engine.mu.RLock()
	sender := s.sender
	s.session.engine.mu.RUnlock()
	if sender != nil {
		sender.SendPacket(s, pkt)
	}
}

// HandlePacket is the FSM's single entry point for an inbound ZRTP
// packet (spec §4 "one state machine per stream, driven by inbound
// messages and retry timeouts").
func (s *Stream) HandlePacket(buf []byte) error {
	p, err := wire.ParsePacket(buf)
	if err != nil {
		return err
	}

	if !s.acceptSequence(uint16(p.SequenceNumber)) {
		return errReplayedPacket
	}

	switch p.Message.Type {
	case wire.TypeHello:
		return s.onHello(p.Message.Body)
	case wire.TypeHelloAck:
		return s.onHelloAck()
	case wire.TypeCommit:
		return s.onCommit(p.Message.Body)
	case wire.TypeDHPart1:
		return s.onDHPart1(p.Message.Body)
	case wire.TypeDHPart2:
		return s.onDHPart2(p.Message.Body)
	case wire.TypeConfirm1:
		return s.onConfirm1(p.Message.Body)
	case wire.TypeConfirm2:
		return s.onConfirm2(p.Message.Body)
	case wire.TypeConf2Ack:
		return s.onConfirmAck()
	case wire.TypeGoClear:
		return s.onGoClear(p.Message.Body)
	case wire.TypeClearAck:
		return s.onClearAck()
	case wire.TypeError:
		return s.onError(p.Message.Body)
	case wire.TypeErrorAck:
		return s.onErrorAck()
	default:
		return nil
	}
}

func (s *Stream) onHello(body []byte) error {
	peer, err := wire.DecodeHello(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.peerHello = peer
	s.peerHelloRaw = body
	s.peerH3 = peer.H3
	s.session.SetPeerZID(peer.ZID)
	s.mu.Unlock()

	// A passive peer never initiates; an active/unlimited local
	// endpoint responds with HelloAck and waits to be Committed to.
	s.sendMessage(wire.TypeHelloAck, wire.EmptyBody())

	if s.State() == StateNone {
		s.setState(StateWaitHello)
	}
	return nil
}

func (s *Stream) onHelloAck() error {
	s.mu.Lock()
	if s.helloRetry != nil {
		retry := s.helloRetry
		s.mu.Unlock()
		s.session.engine.scheduler.CancelCallLater(s, retry)
	} else {
		s.mu.Unlock()
	}

	// Only the licensed-active side proceeds to Commit; a passive
	// endpoint waits in WaitHello for the peer's own Hello to arrive,
	// then simply HelloAcks it and waits to be Committed to.
	if s.session.profile.License == config.LicensePassive {
		s.setState(StateWaitHello)
		return nil
	}

	s.mu.Lock()
	peerReady := s.peerHello != nil
	s.mu.Unlock()
	if peerReady {
		return s.initiateCommit()
	}
	s.setState(StateWaitHello)
	return nil
}

// initiateCommit picks DH mode or Multistream mode depending on
// whether this session already has an established ZRTP session key
// from an earlier stream, then dispatches to the matching Commit
// builder.
func (s *Stream) initiateCommit() error {
	if sessionKey, ok := s.session.getSessionKey(); ok {
		return s.initiateMultistreamCommit(sessionKey)
	}
	return s.initiateDHCommit()
}

// initiateMultistreamCommit sends a Commit advertising PublicKey "Mult"
// for an additional stream within an already-secured session, skipping
// the DH round trips entirely (spec §4.2 Multistream mode).
func (s *Stream) initiateMultistreamCommit(_ []byte) error {
	s.mu.Lock()
	localHash, ok := pickComponent(s.session.profile.HashPreferences, s.peerHello.Hashes)
	localCipher, cipherOK := pickComponent(s.session.profile.CipherPreferences, s.peerHello.Ciphers)
	localAuthTag, authOK := pickComponent(s.session.profile.AuthTagPreferences, s.peerHello.AuthTags)
	localSAS, sasOK := pickComponent(s.session.profile.SASPreferences, s.peerHello.SASTypes)
	s.mu.Unlock()
	if !ok || !cipherOK || !authOK || !sasOK {
		s.setState(StateNoZRTP)
		return errNoUsableComponents
	}

	hashFactory, hok := hashFactoryFor(s.session.engine, localHash)
	if !hok {
		return errNoUsableComponents
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	s.mu.Lock()
	s.isInitiator = true
	s.multistream = true
	s.hashName, s.cipherName, s.authTagName, s.pkName, s.sasName =
		localHash, localCipher, localAuthTag, "Mult", localSAS
	s.hashFactory = hashFactory
	s.totalHash = kdf.NewTotalHash(hashFactory)
	s.totalHash.Add(s.peerHelloRaw)

	hmac := wire.MAC8(hashFactory, s.chain.H0, nonce)
	hvi := append(append([]byte(nil), nonce...), hmac...)
	hvi = append(hvi, make([]byte, 32-len(hvi))...)

	commit := &wire.Commit{
		H2: s.chain.H2, ZID: s.session.localZID,
		Hash: localHash, Cipher: localCipher, AuthTag: localAuthTag,
		PublicKey: "Mult", SASType: localSAS, HVI: hvi,
	}
	commitRaw := commit.Encode()
	s.localCommitRaw = commitRaw
	s.totalHash.Add(commitRaw)
	s.mu.Unlock()

	if err := s.finishMultistreamOrPreshared(nonce, false); err != nil {
		return err
	}

	s.setState(StateInitiatingSecure)
	s.sendMessage(wire.TypeCommit, commitRaw)
	s.setState(StateWaitConfirm1)
	return nil
}

// initiateDHCommit builds this stream's DH keypair and DHPart2 body up
// front, computes hvi = hash(peerHello || DHPart2), and sends Commit
// (spec §4.4.1 "the initiator pre-builds DHPart2 so hvi commits to it
// before the responder has even replied").
func (s *Stream) initiateDHCommit() error {
	s.mu.Lock()
	localHash, _ := pickComponent(s.session.profile.HashPreferences, s.peerHello.Hashes)
	localCipher, _ := pickComponent(s.session.profile.CipherPreferences, s.peerHello.Ciphers)
	localAuthTag, _ := pickComponent(s.session.profile.AuthTagPreferences, s.peerHello.AuthTags)
	localPK, _ := pickComponent(s.session.profile.PublicKeyPreferences, s.peerHello.PublicKeys)
	localSAS, _ := pickComponent(s.session.profile.SASPreferences, s.peerHello.SASTypes)
	s.mu.Unlock()

	if localHash == "" || localCipher == "" || localAuthTag == "" || localPK == "" || localSAS == "" {
		s.setState(StateNoZRTP)
		return errNoUsableComponents
	}

	hashFactory, ok := hashFactoryFor(s.session.engine, localHash)
	if !ok {
		return errNoUsableComponents
	}
	pkScheme, ok := pubKeySchemeFor(s.session.engine, localPK)
	if !ok {
		return errNoUsableComponents
	}

	priv, pub, err := pkScheme.GenerateKeyPair(rand.Reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.isInitiator = true
	s.hashName, s.cipherName, s.authTagName, s.pkName, s.sasName =
		localHash, localCipher, localAuthTag, localPK, localSAS
	s.hashFactory = hashFactory
	s.pkScheme = pkScheme
	s.dhPriv, s.dhPub = priv, pub
	s.totalHash = kdf.NewTotalHash(hashFactory)
	s.totalHash.Add(s.peerHelloRaw)
	localIDs := s.localSecretIDs()
	dhPart2 := &wire.DHPart{
		H1:    s.chain.H1,
		RS1ID: idArray(localIDs["rs1"], hashFactory, initiatorRole),
		RS2ID: idArray(localIDs["rs2"], hashFactory, initiatorRole),
		AuxID: idArray(localIDs["aux"], hashFactory, initiatorRole),
		PBXID: idArray(localIDs["pbx"], hashFactory, initiatorRole),
		PV:    pub,
	}
	dhPart2Raw := s.signDHPart(dhPart2, hashFactory)
	s.localDHPartRaw = dhPart2Raw
	s.totalHash.Add(dhPart2Raw)

	hvi := hashFactory()
	hvi.Write(s.peerHelloRaw)
	hvi.Write(dhPart2Raw)

	commit := &wire.Commit{
		H2:        s.chain.H2,
		ZID:       s.session.localZID,
		Hash:      localHash,
		Cipher:    localCipher,
		AuthTag:   localAuthTag,
		PublicKey: localPK,
		SASType:   localSAS,
		HVI:       hvi.Sum(nil),
	}
	commitRaw := commit.Encode()
	s.localCommitRaw = commitRaw
	s.totalHash.Add(commitRaw)
	s.mu.Unlock()

	s.setState(StateStartInitiatingSecure)
	s.sendMessage(wire.TypeCommit, commitRaw)
	s.setState(StateInitiatingSecure)

	task := &RetryTask{
		Family: FamilyT2,
		Timing: TimingT2,
		Fire: func(retry int) bool {
			s.sendMessage(wire.TypeCommit, commitRaw)
			return s.State() == StateInitiatingSecure
		},
	}
	s.mu.Lock()
	s.commitRetry = task
	s.mu.Unlock()
	s.session.engine.scheduler.CallLater(s, task)

	return nil
}

// onCommit handles an inbound Commit. If this stream has also sent its
// own Commit (glare), the tie-break rule picks the side with the
// numerically larger hvi as initiator (spec §4.4.1 "simultaneous
// Commit").
func (s *Stream) onCommit(body []byte) error {
	peerCommit, err := wire.DecodeCommit(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	glare := s.isInitiator && s.localCommitRaw != nil
	var localHVI []byte
	if glare {
		localHVI = s.peerCommitHVI()
	}
	s.mu.Unlock()

	if glare && compareBytes(localHVI, peerCommit.HVI) >= 0 {
		// We stay initiator; drop the peer's Commit.
		return nil
	}

	s.mu.Lock()
	s.isInitiator = false
	s.peerCommit = peerCommit
	s.peerCommitRaw = body
	s.mu.Unlock()

	if !peerCommit.IsDHMode() {
		return s.respondMultistreamOrPreshared(peerCommit, body)
	}

	hashFactory, ok := hashFactoryFor(s.session.engine, peerCommit.Hash)
	if !ok {
		return errNoUsableComponents
	}
	pkScheme, ok := pubKeySchemeFor(s.session.engine, peerCommit.PublicKey)
	if !ok {
		return errNoUsableComponents
	}

	priv, pub, err := pkScheme.GenerateKeyPair(rand.Reader)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.hashName = peerCommit.Hash
	s.cipherName = peerCommit.Cipher
	s.authTagName = peerCommit.AuthTag
	s.pkName = peerCommit.PublicKey
	s.sasName = peerCommit.SASType
	s.hashFactory = hashFactory
	s.pkScheme = pkScheme
	s.dhPriv, s.dhPub = priv, pub

	s.totalHash = kdf.NewTotalHash(hashFactory)
	s.totalHash.Add(s.localHelloRawOrBuild())
	s.totalHash.Add(body)

	localIDs := s.localSecretIDs()
	dhPart1 := &wire.DHPart{
		H1:    s.chain.H1,
		RS1ID: idArray(localIDs["rs1"], hashFactory, responderRole),
		RS2ID: idArray(localIDs["rs2"], hashFactory, responderRole),
		AuxID: idArray(localIDs["aux"], hashFactory, responderRole),
		PBXID: idArray(localIDs["pbx"], hashFactory, responderRole),
		PV:    pub,
	}
	dhPart1Raw := s.signDHPart(dhPart1, hashFactory)
	s.localDHPartRaw = dhPart1Raw
	s.totalHash.Add(dhPart1Raw)
	s.mu.Unlock()

	s.setState(StateInitiatingSecure)
	s.sendMessage(wire.TypeDHPart1, dhPart1Raw)
	return nil
}

// signDHPart MACs a DHPart message under this stream's own H0 — known
// to the sender immediately, but not verifiable by the peer until the
// sender's H0 is itself revealed in Confirm (spec §4.4.1's "retroactive"
// MAC chaining: each hash-chain level authenticates the message one
// level below it).
func (s *Stream) signDHPart(d *wire.DHPart, hashFactory kdf.HashFunc) []byte {
	raw := d.Encode()
	msg := raw[:len(raw)-8]
	mac := wire.MAC8(hashFactory, s.chain.H0, msg)
	copy(raw[len(raw)-8:], mac)
	return raw
}

// verifyPeerDHPartMAC checks the peer's previously-received DHPart MAC
// now that its H0 has arrived in Confirm.
func (s *Stream) verifyPeerDHPartMAC() bool {
	raw := s.peerDHPartRaw
	if len(raw) < 8 {
		return true
	}
	msg := raw[:len(raw)-8]
	got := raw[len(raw)-8:]
	return wire.VerifyMAC8(s.hashFactory, s.peerH0, msg, got)
}

// respondMultistreamOrPreshared runs on the responder side of a
// Multistream/Preshared Commit: no DHPart round trip, so it derives s0
// straight from the Commit's nonce and replies with Confirm1 directly
// (spec §4.2 "no DH" shortcut).
func (s *Stream) respondMultistreamOrPreshared(peerCommit *wire.Commit, body []byte) error {
	if len(peerCommit.HVI) < 16 {
		return errWrongState
	}
	nonce := peerCommit.HVI[:16]
	preshared := peerCommit.PublicKey == "Prsh"

	hashFactory, ok := hashFactoryFor(s.session.engine, peerCommit.Hash)
	if !ok {
		return errNoUsableComponents
	}

	s.mu.Lock()
	s.multistream = !preshared
	s.hashName = peerCommit.Hash
	s.cipherName = peerCommit.Cipher
	s.authTagName = peerCommit.AuthTag
	s.pkName = peerCommit.PublicKey
	s.sasName = peerCommit.SASType
	s.hashFactory = hashFactory
	s.totalHash = kdf.NewTotalHash(hashFactory)
	s.totalHash.Add(s.localHelloRawOrBuild())
	s.totalHash.Add(body)
	s.mu.Unlock()

	if err := s.finishMultistreamOrPreshared(nonce, preshared); err != nil {
		return err
	}

	return s.sendConfirm1()
}

func (s *Stream) peerCommitHVI() []byte {
	if s.localCommitRaw == nil {
		return nil
	}
	c, err := wire.DecodeCommit(s.localCommitRaw)
	if err != nil {
		return nil
	}
	return c.HVI
}

func (s *Stream) localHelloRawOrBuild() []byte {
	if s.localHelloRaw != nil {
		return s.localHelloRaw
	}
	if s.localHello != nil {
		s.localHelloRaw = s.localHello.Encode()
	}
	return s.localHelloRaw
}

// onDHPart1 runs on the initiator once the responder's DHPart1 arrives:
// it computes the shared secret, then transmits the already-built
// DHPart2 (committed to by hvi back in initiateCommit).
func (s *Stream) onDHPart1(body []byte) error {
	s.mu.Lock()
	pvLen := s.pkScheme.PVLen()
	s.mu.Unlock()

	peerPart, err := wire.DecodeDHPart(body, pvLen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.peerDHPartRaw = body
	s.peerH1 = peerPart.H1
	s.totalHash.Add(body)
	shared, err := s.pkScheme.ComputeShared(s.dhPriv, peerPart.PV)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.finishKeyAgreement(shared, peerPart, initiatorRole); err != nil {
		return err
	}

	s.mu.Lock()
	dhPart2Raw := s.localDHPartRaw
	s.mu.Unlock()
	s.sendMessage(wire.TypeDHPart2, dhPart2Raw)
	s.setState(StateWaitConfirm1)
	return nil
}

// onDHPart2 runs on the responder once the initiator's DHPart2
// arrives: same shared-secret computation, then Confirm1.
func (s *Stream) onDHPart2(body []byte) error {
	s.mu.Lock()
	pvLen := s.pkScheme.PVLen()
	s.mu.Unlock()

	peerPart, err := wire.DecodeDHPart(body, pvLen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.peerDHPartRaw = body
	s.peerH1 = peerPart.H1
	s.totalHash.Add(body)
	shared, err := s.pkScheme.ComputeShared(s.dhPriv, peerPart.PV)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.finishKeyAgreement(shared, peerPart, responderRole); err != nil {
		return err
	}

	return s.sendConfirm1()
}

// finishKeyAgreement derives s0 and the full key schedule once both
// DHPart messages and the DH shared secret are known (spec §4.2).
func (s *Stream) finishKeyAgreement(shared []byte, peerPart *wire.DHPart, localRole string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dhss := kdf.DHSS(s.hashFactory, shared)
	totalHash := s.totalHash.Sum()

	localIDs := s.localSecretIDs()
	peerIDs := map[string][8]byte{
		"rs1": peerPart.RS1ID,
		"rs2": peerPart.RS2ID,
		"aux": peerPart.AuxID,
		"pbx": peerPart.PBXID,
	}
	matched := kdf.MatchSecrets(s.hashFactory, localRole, localIDs, peerIDs)

	var zidInit, zidResp [12]byte
	if s.isInitiator {
		zidInit, zidResp = s.session.localZID, s.session.peerZID
	} else {
		zidInit, zidResp = s.session.peerZID, s.session.localZID
	}

	s.s0 = kdf.DeriveS0(s.hashFactory, dhss, zidInit, zidResp, totalHash, matched)
	return s.finishKeyScheduleFromS0(zidInit, zidResp, totalHash)
}

// finishKeyScheduleFromS0 derives the key schedule once s0 is known by
// whatever means (DH mode, Multistream, or Preshared) — shared tail of
// finishKeyAgreement and finishMultistreamOrPreshared.
func (s *Stream) finishKeyScheduleFromS0(zidInit, zidResp [12]byte, totalHash []byte) error {
	ks, err := kdf.DeriveKeySchedule(s.hashFactory, s.s0, kdf.Context(zidInit, zidResp, totalHash), kdf.DefaultSizes, s.sasName)
	if err != nil {
		return err
	}
	s.keySchedule = ks
	return nil
}

// finishMultistreamOrPreshared derives s0 without running DH, for a
// Commit advertising PublicKey "Mult" (multistream, rooted in the
// session's already-established ZRTP session key) or "Prsh"
// (preshared, rooted in a cached preshared secret) — spec §4.2's "no
// DH" shortcut for additional streams within one already-secured
// session.
func (s *Stream) finishMultistreamOrPreshared(nonce []byte, preshared bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalHash := s.totalHash.Sum()
	var zidInit, zidResp [12]byte
	if s.isInitiator {
		zidInit, zidResp = s.session.localZID, s.session.peerZID
	} else {
		zidInit, zidResp = s.session.peerZID, s.session.localZID
	}

	if preshared {
		secret, err := s.session.engine.cache.GetMiTMSecret(s.session.localZID, s.session.peerZID)
		if err != nil || len(secret) == 0 {
			return errNoPresharedSecret
		}
		s.s0 = kdf.DerivePresharedS0(s.hashFactory, secret, nonce)
	} else {
		sessionKey, ok := s.session.getSessionKey()
		if !ok {
			return errNoSessionKey
		}
		s.s0 = kdf.DeriveMultistreamS0(s.hashFactory, sessionKey, nonce)
	}
	return s.finishKeyScheduleFromS0(zidInit, zidResp, totalHash)
}

func (s *Stream) localConfirmKeys() (zrtpKey, hmacKey []byte) {
	if s.isInitiator {
		return s.keySchedule.InitiatorZRTPKey, s.keySchedule.InitiatorHMACKey
	}
	return s.keySchedule.ResponderZRTPKey, s.keySchedule.ResponderHMACKey
}

func (s *Stream) peerConfirmKeys() (zrtpKey, hmacKey []byte) {
	if s.isInitiator {
		return s.keySchedule.ResponderZRTPKey, s.keySchedule.ResponderHMACKey
	}
	return s.keySchedule.InitiatorZRTPKey, s.keySchedule.InitiatorHMACKey
}

// buildConfirmBody produces the wire-ready MAC||IV||ciphertext blob for
// a Confirm message: encrypt-then-MAC over the H0/flags/cache-expiry
// region under the sender's own zrtp_key and hmac key (spec §4.4).
func (s *Stream) buildConfirmBody(h0 []byte, allowClear, sasVerified bool) ([]byte, error) {
	c := &wire.Confirm{H0: h0, AllowClear: allowClear, SASVerified: sasVerified}
	full := c.Encode() // zeroed MAC(8)+IV(16) followed by the plaintext region
	plain := full[24:]

	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}

	zrtpKey, hmacKey := s.localConfirmKeys()
	ciphertext, err := encryptConfirmBody(zrtpKey, iv, plain)
	if err != nil {
		return nil, err
	}
	mac := wire.MAC8(s.hashFactory, hmacKey, ciphertext)

	out := make([]byte, 24+len(ciphertext))
	copy(out[0:8], mac)
	copy(out[8:24], iv)
	copy(out[24:], ciphertext)
	return out, nil
}

// parseConfirmBody verifies and decrypts an inbound Confirm body under
// the peer's zrtp_key/hmac key.
func (s *Stream) parseConfirmBody(body []byte) (*wire.Confirm, error) {
	c, err := wire.DecodeConfirm(body)
	if err != nil {
		return nil, err
	}

	zrtpKey, hmacKey := s.peerConfirmKeys()
	if !wire.VerifyMAC8(s.hashFactory, hmacKey, c.EncryptedBody, c.MAC) {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventWrongHMAC)
		return nil, errWrongState
	}

	plain, err := decryptConfirmBody(zrtpKey, c.IV, c.EncryptedBody)
	if err != nil {
		return nil, err
	}
	if err := c.ParsePlaintext(plain); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Stream) sendConfirm1() error {
	s.mu.Lock()
	body, err := s.buildConfirmBody(s.chain.H0, s.session.profile.AllowClear, s.sasVerified)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.setState(StateWaitConfirm2)
	s.sendMessage(wire.TypeConfirm1, body)
	return nil
}

func (s *Stream) onConfirm1(body []byte) error {
	c, err := s.parseConfirmBody(body)
	if err != nil {
		return err
	}
	if err := s.verifyPeerPreimage(c.H0, 1); err != nil {
		return err
	}
	s.mu.Lock()
	macOK := s.verifyPeerDHPartMAC()
	s.mu.Unlock()
	if !macOK {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventWrongHMAC)
		return errWrongState
	}

	if err := s.activateSecure(); err != nil {
		return err
	}

	s.mu.Lock()
	body2, err := s.buildConfirmBody(s.chain.H0, s.session.profile.AllowClear, s.sasVerified)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.sendMessage(wire.TypeConfirm2, body2)
	s.setState(StateSecure)
	return nil
}

func (s *Stream) onConfirm2(body []byte) error {
	c, err := s.parseConfirmBody(body)
	if err != nil {
		return err
	}
	if err := s.verifyPeerPreimage(c.H0, 1); err != nil {
		return err
	}
	s.mu.Lock()
	macOK := s.verifyPeerDHPartMAC()
	s.mu.Unlock()
	if !macOK {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventWrongHMAC)
		return errWrongState
	}

	if err := s.activateSecure(); err != nil {
		return err
	}

	s.sendMessage(wire.TypeConf2Ack, wire.EmptyBody())
	s.setState(StateSecure)
	return nil
}

func (s *Stream) onConfirmAck() error {
	// The initiator's view is already Secure once it sent Confirm2; the
	// ack is informational only.
	return nil
}

// verifyPeerPreimage checks that hashing the newly-received preimage
// reproduces the previously-published hash-chain value (spec §4.2
// anti-DoS hash chain: "receiver re-hashes the held preimage").
func (s *Stream) verifyPeerPreimage(preimage []byte, _ int) error {
	s.mu.Lock()
	expect := s.peerH1
	peerH3 := s.peerH3
	s.mu.Unlock()

	var ok bool
	if expect != nil {
		ok = wire.VerifyPreimage(sha256Chain, expect, preimage)
	} else {
		// Multistream: no DHPart carried the peer's H1, so hash the
		// preimage up to the H3 its Hello published.
		ok = wire.VerifyPreimage(sha256Chain, peerH3, sha256Chain(sha256Chain(preimage)))
	}
	if !ok {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventWrongHMAC)
		return errWrongState
	}
	s.mu.Lock()
	s.peerH0 = preimage
	s.mu.Unlock()
	return nil
}

// clearHMACConst is the ASCII string GoClear's 8-byte HMAC authenticates,
// proving the sender still holds the secure session's hmackey (spec
// §4.1 "GoClear").
const clearHMACConst = "GoClear"

// GoClear asks the peer to drop SRTP protection for this stream,
// authenticating the request with the negotiated hmackey so an
// off-path attacker can't force a downgrade (spec §4.1). Returns
// errWrongState if this stream isn't currently Secure, or if the
// session profile forbids clear mode.
func (s *Stream) GoClear() error {
	if !s.session.profile.AllowClear {
		return errWrongState
	}
	s.mu.Lock()
	if s.state != StateSecure {
		s.mu.Unlock()
		return errWrongState
	}
	_, hmacKey := s.localConfirmKeys()
	hashFactory := s.hashFactory
	s.mu.Unlock()

	gc := &wire.GoClear{ClearHMAC: wire.MAC8(hashFactory, hmacKey, []byte(clearHMACConst))}
	s.setState(StateInitiatingClear)
	s.sendMessage(wire.TypeGoClear, gc.Encode())
	s.setState(StatePendingClear)
	return nil
}

// ConfirmSAS records the operator's out-of-band SAS verification
// decision in the cache, so future sessions with this peer ZID are
// flagged as previously verified (spec §5 "SAS comparison").
func (s *Stream) ConfirmSAS(verified bool) error {
	s.mu.Lock()
	s.sasVerified = verified
	s.mu.Unlock()
	return s.session.engine.cache.SetVerified(s.session.localZID, s.session.peerZID, verified)
}

func (s *Stream) onGoClear(body []byte) error {
	gc, err := wire.DecodeGoClear(body)
	if err != nil {
		return err
	}
	if !s.session.profile.AllowClear {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventUnauthenticatedGoClear)
		return nil
	}

	s.mu.Lock()
	haveSchedule := s.keySchedule != nil
	var hmacKey []byte
	var hashFactory kdf.HashFunc
	if haveSchedule {
		_, hmacKey = s.peerConfirmKeys()
		hashFactory = s.hashFactory
	}
	s.mu.Unlock()

	if !haveSchedule || !wire.VerifyMAC8(hashFactory, hmacKey, []byte(clearHMACConst), gc.ClearHMAC) {
		s.session.engine.handler.OnSecurityEvent(s, SecurityEventUnauthenticatedGoClear)
		return nil
	}

	s.sendMessage(wire.TypeClearAck, wire.EmptyBody())
	s.teardownCrypto()
	s.setState(StateClear)
	s.session.engine.handler.OnNotSecure(s)
	return nil
}

func (s *Stream) onClearAck() error {
	s.teardownCrypto()
	s.setState(StateClear)
	s.session.engine.handler.OnNotSecure(s)
	return nil
}

func (s *Stream) onError(body []byte) error {
	e, err := wire.DecodeError(body)
	if err != nil {
		return err
	}
	s.session.engine.handler.OnSecurityEvent(s, SecurityEventNone)
	_ = e
	s.sendMessage(wire.TypeErrorAck, wire.EmptyBody())
	s.setState(StateError)
	return nil
}

func (s *Stream) onErrorAck() error {
	return nil
}

func (s *Stream) teardownCrypto() {
	s.mu.Lock()
	s.txCrypto = nil
	s.rxCrypto = nil
	s.mu.Unlock()
}

// activateSecure builds the SRTP contexts from the key schedule,
// rotates the retained-secret cache entry, and marks the session's
// ZRTP session key if this is the first DH stream to reach Secure
// (spec §4.2 / §6).
func (s *Stream) activateSecure() error {
	s.mu.Lock()
	ks := s.keySchedule
	isInitiator := s.isInitiator
	authLen, err := srtp.AuthTagBytes(s.authTagName)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	spec, ok := cipherSpecFor(s.session.engine, s.cipherName)
	s.mu.Unlock()
	if !ok {
		return errNoUsableComponents
	}

	var txKey, txSalt, rxKey, rxSalt []byte
	if isInitiator {
		txKey, txSalt = ks.InitiatorSRTPKey, ks.InitiatorSRTPSalt
		rxKey, rxSalt = ks.ResponderSRTPKey, ks.ResponderSRTPSalt
	} else {
		txKey, txSalt = ks.ResponderSRTPKey, ks.ResponderSRTPSalt
		rxKey, rxSalt = ks.InitiatorSRTPKey, ks.InitiatorSRTPSalt
	}

	s.mu.Lock()
	s.txCrypto = srtp.NewContext(txKey, txSalt, spec.Cipher, authLen)
	s.rxCrypto = srtp.NewContext(rxKey, rxSalt, spec.Cipher, authLen)
	s.mu.Unlock()

	s.session.setSessionKey(ks.ZRTPSessionKey, isInitiator)
	s.rotateRetainedSecret()
	s.session.engine.handler.OnSecure(s)
	return nil
}

// rotateRetainedSecret derives rs1' and writes it to the cache,
// shifting the previous rs1 into the rs2 slot (spec §6 rotation).
func (s *Stream) rotateRetainedSecret() {
	s.mu.Lock()
	ks := s.keySchedule
	hashFactory := s.hashFactory
	s0 := s.s0
	totalHash := s.totalHash
	localZID, peerZID := s.session.localZID, s.session.peerZID
	s.mu.Unlock()
	if ks == nil || s0 == nil {
		return
	}

	var zidInit, zidResp [12]byte
	if s.isInitiator {
		zidInit, zidResp = localZID, peerZID
	} else {
		zidInit, zidResp = peerZID, localZID
	}
	next, err := kdf.DeriveRetainedSecret(hashFactory, s0, kdf.Context(zidInit, zidResp, totalHash.Sum()), 64)
	if err != nil {
		return
	}

	engineCache := s.session.engine.cache
	current, err := engineCache.Get(localZID, peerZID, SecretCurrent)
	if err == nil && current != nil && len(current.Value) > 0 {
		engineCache.Put(localZID, peerZID, SecretPrevious, current)
	} else if err != nil && err != ErrCacheMiss {
		return
	}
	engineCache.Put(localZID, peerZID, SecretCurrent, &RetainedSecret{Value: next})
}

// localSecretIDs reads this endpoint's currently cached retained
// secrets for the session's ZID pair, in the shape MatchSecrets wants.
func (s *Stream) localSecretIDs() map[string][]byte {
	out := make(map[string][]byte)
	localZID, peerZID := s.session.localZID, s.session.peerZID
	if current, err := s.session.engine.cache.Get(localZID, peerZID, SecretCurrent); err == nil {
		out["rs1"] = current.Value
	}
	if previous, err := s.session.engine.cache.Get(localZID, peerZID, SecretPrevious); err == nil {
		out["rs2"] = previous.Value
	}
	return out
}

func idArray(secret []byte, hashFactory kdf.HashFunc, role string) [8]byte {
	var out [8]byte
	if len(secret) == 0 {
		return out
	}
	copy(out[:], kdf.SecretID(hashFactory, secret, role))
	return out
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

const (
	initiatorRole = "Initiator"
	responderRole = "Responder"
)

// sha256Chain seeds the stream's H0-H3 anti-DoS hash chain. The chain
// always uses SHA-256 regardless of the session hash negotiated later
// (spec §4.2: H3 is published in Hello, before any hash is agreed).
func sha256Chain(p []byte) []byte {
	var hf hash.Hash = sha256.New()
	hf.Write(p)
	return hf.Sum(nil)
}
