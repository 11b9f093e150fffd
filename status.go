package zrtp

// Status is the engine's internal operation outcome, distinct from the
// wire-visible ProtocolError codes sent in an Error message. Values
// match original_source/include/zrtp_error.h's zrtp_status_t exactly,
// so log lines and crash dumps from this engine line up with the
// reference numbering a libzrtp-familiar operator already knows.
type Status int

const (
	StatusOK            Status = 0
	StatusFail          Status = 1
	StatusBadParam      Status = 2
	StatusAllocFail     Status = 3
	StatusAuthFail      Status = 4
	StatusCipherFail    Status = 5
	StatusAlgoFail      Status = 6
	StatusKeyExpired    Status = 7
	StatusBufferSize    Status = 8
	StatusDrop          Status = 9
	StatusOpenFail      Status = 10
	StatusReadFail      Status = 11
	StatusWriteFail     Status = 12
	StatusOldPacket     Status = 13
	StatusRTPReplayFail Status = 14
	StatusZRTPReplayFail Status = 15
	StatusCRCFail       Status = 16
	StatusRNGFail       Status = 17
	StatusWrongState    Status = 18
	StatusAttack        Status = 19
	StatusNotAvailable  Status = 20
)

var statusNames = map[Status]string{
	StatusOK:             "ok",
	StatusFail:           "fail",
	StatusBadParam:       "bad_param",
	StatusAllocFail:      "alloc_fail",
	StatusAuthFail:       "auth_fail",
	StatusCipherFail:     "cipher_fail",
	StatusAlgoFail:       "algo_fail",
	StatusKeyExpired:     "key_expired",
	StatusBufferSize:     "buffer_size",
	StatusDrop:           "drop",
	StatusOpenFail:       "open_fail",
	StatusReadFail:       "read_fail",
	StatusWriteFail:      "write_fail",
	StatusOldPacket:      "old_pkt",
	StatusRTPReplayFail:  "rp_fail",
	StatusZRTPReplayFail: "zrp_fail",
	StatusCRCFail:        "crc_fail",
	StatusRNGFail:        "rng_fail",
	StatusWrongState:     "wrong_state",
	StatusAttack:         "attack",
	StatusNotAvailable:   "notavailable",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown_status"
}

func (s Status) Error() string {
	return "zrtp: " + s.String()
}

// ProtocolError is a wire-visible ZRTP protocol error code, sent to the
// peer in an Error message (spec §7.2). Values match
// original_source/include/zrtp_error.h's zrtp_protocol_error_t exactly.
type ProtocolError uint32

const (
	ErrorInvalidPacket  ProtocolError = 0x10
	ErrorSoftware       ProtocolError = 0x20
	ErrorVersion        ProtocolError = 0x30
	ErrorHelloMismatch  ProtocolError = 0x40
	ErrorHashUnsupported    ProtocolError = 0x51
	ErrorCipherUnsupported  ProtocolError = 0x52
	ErrorPKTypeUnsupported  ProtocolError = 0x53
	ErrorAuthUnsupported    ProtocolError = 0x54
	ErrorSASUnsupported     ProtocolError = 0x55
	ErrorNoSecret           ProtocolError = 0x56
	ErrorPossibleMiTM1      ProtocolError = 0x61
	ErrorPossibleMiTM2      ProtocolError = 0x62
	ErrorPossibleMiTM3      ProtocolError = 0x63
	ErrorAuthDecrypt        ProtocolError = 0x70
	ErrorNonceReuse         ProtocolError = 0x80
	ErrorEqualZID           ProtocolError = 0x90
	ErrorServiceUnavailable ProtocolError = 0xA0
	ErrorGoClearUnsupported ProtocolError = 0x100
	ErrorWrongZID           ProtocolError = 0x202
	ErrorWrongMeshMAC       ProtocolError = 0x203
)

var protocolErrorNames = map[ProtocolError]string{
	ErrorInvalidPacket:      "invalid_packet",
	ErrorSoftware:           "software",
	ErrorVersion:            "version",
	ErrorHelloMismatch:      "hello_mismatch",
	ErrorHashUnsupported:    "hash_unsp",
	ErrorCipherUnsupported:  "cipher_unsp",
	ErrorPKTypeUnsupported:  "pktype_unsp",
	ErrorAuthUnsupported:    "auth_unsp",
	ErrorSASUnsupported:     "sas_unsp",
	ErrorNoSecret:           "no_secret",
	ErrorPossibleMiTM1:      "possible_mitm1",
	ErrorPossibleMiTM2:      "possible_mitm2",
	ErrorPossibleMiTM3:      "possible_mitm3",
	ErrorAuthDecrypt:        "auth_decrypt",
	ErrorNonceReuse:         "nonce_reuse",
	ErrorEqualZID:           "equal_zid",
	ErrorServiceUnavailable: "service_unavail",
	ErrorGoClearUnsupported: "goclear_unsp",
	ErrorWrongZID:           "wrong_zid",
	ErrorWrongMeshMAC:       "wrong_meshmac",
}

func (e ProtocolError) String() string {
	if name, ok := protocolErrorNames[e]; ok {
		return name
	}
	return "unknown_error"
}

func (e ProtocolError) Error() string {
	return "zrtp: peer reported " + e.String()
}
