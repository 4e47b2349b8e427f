// Package rrc supplies the RRC PDU types carried inside F1AP RRC message
// transfer messages (TS 38.331), plus the PDCP framing rule of spec.md §6:
// PDCP-framed for SRB ≥ 1, raw for SRB 0. ASN.1 encoding is out of scope
// (spec.md §1); EncodePDU/DecodePDU use the same JSON placeholder as the
// rest of the wire path, grounded on nf/gnb/internal/cu/cu.go's
// createRRCSetup byte-placeholder approach.
package rrc

import "encoding/json"

// EstablishmentCause mirrors the Rust source's RrcSetupRequest cause enum;
// only a subset of its values is named here.
type EstablishmentCause int

const (
	CauseMtAccess EstablishmentCause = iota
	CauseMoSignalling
	CauseMoData
)

// RrcSetupRequest is the first RRC PDU a UE sends on SRB0.
type RrcSetupRequest struct {
	Cause EstablishmentCause
}

// RrcSetup is the gNB's reply on SRB0.
type RrcSetup struct {
	RRCTransactionID uint8
}

// RrcSetupComplete carries the UE's piggybacked initial NAS message.
type RrcSetupComplete struct {
	RRCTransactionID uint8
	NASMessage       []byte
}

// SecurityModeCommand instructs the UE to activate AS security.
type SecurityModeCommand struct {
	IntegrityAlgorithm string
	CipheringAlgorithm string
}

// SecurityModeComplete is the UE's acknowledgement.
type SecurityModeComplete struct{}

// SecurityModeFailure is sent if the UE cannot comply.
type SecurityModeFailure struct {
	Cause string
}

// RrcReconfiguration carries the DRB configuration and any buffered NAS.
type RrcReconfiguration struct {
	RRCTransactionID uint8
	BufferedNAS      []byte
}

// RrcReconfigurationComplete is the UE's acknowledgement.
type RrcReconfigurationComplete struct {
	RRCTransactionID uint8
}

// UlDcchMessage is the generic envelope the matcher deals in: any uplink
// message on the dedicated control channel (SRB ≥ 1), tagged by which
// concrete message it carries. This is the Go analogue of the Rust
// source's UlDcchMessage enum that the RRC transaction matcher's known
// limitation (spec.md §4.3/§9) operates over indiscriminately.
type UlDcchMessage struct {
	Kind         UlDcchKind
	RawContainer []byte
}

// UlDcchKind discriminates the payload carried by UlDcchMessage.
type UlDcchKind int

const (
	UlDcchRrcSetupComplete UlDcchKind = iota
	UlDcchSecurityModeComplete
	UlDcchSecurityModeFailure
	UlDcchRrcReconfigurationComplete
)

// DecodeRrcSetupComplete, DecodeSecurityModeComplete, and
// DecodeRrcReconfigurationComplete interpret a UlDcchMessage's
// RawContainer once a caller has decided (from Kind, after the matcher
// hands it back) which concrete message it expects — callers must
// validate Kind themselves per the matcher's documented known limitation.
func DecodeRrcSetupComplete(raw []byte) (RrcSetupComplete, error) {
	var v RrcSetupComplete
	err := json.Unmarshal(raw, &v)
	return v, err
}

func DecodeSecurityModeComplete(raw []byte) (SecurityModeComplete, error) {
	var v SecurityModeComplete
	err := json.Unmarshal(raw, &v)
	return v, err
}

func DecodeRrcReconfigurationComplete(raw []byte) (RrcReconfigurationComplete, error) {
	var v RrcReconfigurationComplete
	err := json.Unmarshal(raw, &v)
	return v, err
}

// EncodePDU serializes any RRC message to its wire container.
func EncodePDU(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePDU deserializes an RRC message from its wire container.
func DecodePDU(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// FrameForSRB applies PDCP framing per spec.md §6: raw for SRB 0,
// PDCP-framed for SRB ≥ 1. The PDCP header is a placeholder single-byte
// sequence-number prefix — real PDCP ciphering/integrity is out of scope.
func FrameForSRB(srbID uint8, rrcPDU []byte, pdcpSN uint8) []byte {
	if srbID == 0 {
		return rrcPDU
	}
	framed := make([]byte, 0, len(rrcPDU)+1)
	framed = append(framed, pdcpSN)
	framed = append(framed, rrcPDU...)
	return framed
}

// UnframeForSRB reverses FrameForSRB.
func UnframeForSRB(srbID uint8, wire []byte) (rrcPDU []byte, pdcpSN uint8) {
	if srbID == 0 {
		return wire, 0
	}
	if len(wire) == 0 {
		return nil, 0
	}
	return wire[1:], wire[0]
}
