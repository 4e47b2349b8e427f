// Package ngap supplies the NG interface's PDU types and the
// stack.Procedure/stack.Indication descriptors that drive internal/stack
// for the NGAP protocol family (TS 38.413), grounded on the NGAP surface
// sketched by nf/gnb/internal/cu/cu.go's N2Client and nf/amf's AMF-side
// types in the teacher repo.
package ngap

import (
	"github.com/your-org/gnb-cu-cp/internal/stack"
)

// PagingDRX is the discontinuous reception cycle advertised in NgSetupRequest.
type PagingDRX int

const (
	PagingDRXV32 PagingDRX = iota
	PagingDRXV64
	PagingDRXV128
	PagingDRXV256
)

// PLMNID is a 3-byte PLMN identity (MCC+MNC, BCD-ish per TS 23.003; this
// worker carries it as the 3 raw octets quoted by spec.md's scenarios).
type PLMNID [3]byte

// SliceSupportItem is one S-NSSAI entry in a TAC's supported slice list.
type SliceSupportItem struct {
	SST uint8
	SD  *[3]byte
}

// SupportedTAItem is one tracking area the gNB serves, with its slice list.
type SupportedTAItem struct {
	TAC              [3]byte
	PLMN             PLMNID
	SliceSupportList []SliceSupportItem
}

// GlobalRANNodeID identifies this gNB to the AMF.
type GlobalRANNodeID struct {
	PLMN   PLMNID
	GNBID  uint32
}

// NgSetupRequest is the gNB → AMF initiating message establishing the NG
// interface, per spec.md §4.7's NG Setup workflow.
type NgSetupRequest struct {
	GlobalRANNodeID  GlobalRANNodeID
	RANNodeName      string
	SupportedTAList  []SupportedTAItem
	DefaultPagingDRX PagingDRX
}

// NgSetupResponse is the AMF's successful outcome.
type NgSetupResponse struct {
	AMFName            string
	ServedGUAMIList    []string
	RelativeAMFCapacity int
}

// NgSetupFailure is the AMF's unsuccessful outcome.
type NgSetupFailure struct {
	Cause string
}

// InitialUeMessage carries the first NAS PDU from gNB to AMF for a UE that
// has no AMF UE NGAP id yet.
type InitialUeMessage struct {
	RANUENGAPID uint32
	NASPDU      []byte
	TAI         SupportedTAItem
}

// UplinkNasTransport carries subsequent NAS PDUs gNB → AMF.
type UplinkNasTransport struct {
	AMFUENGAPID uint64
	RANUENGAPID uint32
	NASPDU      []byte
}

// DownlinkNasTransport carries NAS PDUs AMF → gNB, including security
// instructions per spec.md S4.
type DownlinkNasTransport struct {
	AMFUENGAPID uint64
	RANUENGAPID uint32
	NASPDU      []byte
}

// UeContextReleaseCommand is the AMF's request to tear down a UE's NG
// context, per the UE Release workflow.
type UeContextReleaseCommand struct {
	AMFUENGAPID uint64
	RANUENGAPID uint32
	Cause       string
}

// UeContextReleaseComplete is the gNB's acknowledgement.
type UeContextReleaseComplete struct {
	AMFUENGAPID uint64
	RANUENGAPID uint32
}

// UeContextReleaseFailure is returned when the gNB cannot honor the request.
type UeContextReleaseFailure struct {
	Cause string
}

// Procedure codes (arbitrary stable ids distinguishing NGAP procedures on
// the wire; not the 3GPP procedure codes, since ASN.1/PER is out of scope
// per spec.md §1).
const (
	ProcCodeNgSetup               uint32 = 101
	ProcCodeUeContextRelease      uint32 = 102
)

// Indication codes for one-way NGAP messages.
const (
	IndCodeInitialUeMessage     uint32 = 201
	IndCodeUplinkNasTransport   uint32 = 202
	IndCodeDownlinkNasTransport uint32 = 203
)

// NgSetupProcedure is the stack.Procedure descriptor for NG Setup.
var NgSetupProcedure = stack.Procedure[NgSetupRequest, NgSetupResponse, NgSetupFailure]{
	Name: "NgSetup",
	Code: ProcCodeNgSetup,
	EncodeRequest: jsonEncode[NgSetupRequest],
	DecodeSuccess: jsonDecode[NgSetupResponse],
	DecodeFailure: jsonDecode[NgSetupFailure],
}

// UeContextReleaseProcedure is the stack.Procedure descriptor for the AMF
// to gNB context release handshake. The AMF is the requester: this worker
// only receives the command as an InitiatingMessage and replies via
// stack.RespondSuccess/RespondFailure.
var UeContextReleaseProcedure = stack.Procedure[UeContextReleaseCommand, UeContextReleaseComplete, UeContextReleaseFailure]{
	Name: "UeContextRelease",
	Code: ProcCodeUeContextRelease,
	EncodeRequest: jsonEncode[UeContextReleaseCommand],
	DecodeSuccess: jsonDecode[UeContextReleaseComplete],
	DecodeFailure: jsonDecode[UeContextReleaseFailure],
}

// InitialUeMessageIndication sends the first NAS PDU for a UE.
var InitialUeMessageIndication = stack.Indication[InitialUeMessage]{
	Name:   "InitialUeMessage",
	Code:   IndCodeInitialUeMessage,
	Encode: jsonEncode[InitialUeMessage],
}

// UplinkNasTransportIndication forwards subsequent NAS PDUs.
var UplinkNasTransportIndication = stack.Indication[UplinkNasTransport]{
	Name:   "UplinkNasTransport",
	Code:   IndCodeUplinkNasTransport,
	Encode: jsonEncode[UplinkNasTransport],
}

func jsonEncode[T any](v T) ([]byte, error) {
	return stack.JSONCodec{}.EncodeValue(v)
}

func jsonDecode[T any](data []byte) (T, error) {
	var v T
	err := stack.JSONCodec{}.DecodeValue(data, &v)
	return v, err
}

// DecodeDownlinkNasTransport and DecodeUeContextReleaseCommand are used by
// the NGAP handler to interpret inbound InitiatingMessage/Indication
// envelopes keyed by procedure/indication code.
func DecodeDownlinkNasTransport(payload []byte) (DownlinkNasTransport, error) {
	return jsonDecode[DownlinkNasTransport](payload)
}

func DecodeUeContextReleaseCommand(payload []byte) (UeContextReleaseCommand, error) {
	return jsonDecode[UeContextReleaseCommand](payload)
}

// EncodeUeContextReleaseComplete/EncodeUeContextReleaseFailure are used by
// the NGAP handler to answer an inbound UeContextReleaseCommand with
// stack.RespondSuccess/RespondFailure, since the gNB is the responder for
// this procedure, not the requester.
func EncodeUeContextReleaseComplete(v UeContextReleaseComplete) ([]byte, error) {
	return jsonEncode(v)
}

func EncodeUeContextReleaseFailure(v UeContextReleaseFailure) ([]byte, error) {
	return jsonEncode(v)
}
