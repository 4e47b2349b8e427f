// Package f1ap supplies the F1 interface's PDU types and
// stack.Procedure/stack.Indication descriptors, adapted from the CU-side
// surface of common/f1/interface.go (F1SetupRequest/Response,
// UEContextSetupRequest/Response, the RRC message-transfer triad, and the
// CU/DU configuration-update pair) to this worker's gNB-CU-CP role: it
// answers F1SetupRequest rather than sending it, and originates
// GnbCuConfigurationUpdate rather than receiving CUConfigurationUpdate.
package f1ap

import (
	"net"

	"github.com/your-org/gnb-cu-cp/internal/stack"
)

// PLMNID mirrors common/f1.PLMNID.
type PLMNID struct {
	MCC string
	MNC string
}

// NRCGI is the NR Cell Global Identifier.
type NRCGI struct {
	PLMN     PLMNID
	NRCellID uint64
}

// RRCVersion carries the DU/CU RRC version octets.
type RRCVersion struct {
	Latest   []byte
	Extended []byte
}

// ServedCell is one cell a DU advertises at F1 Setup.
type ServedCell struct {
	ServedCellIndex uint8
	NRCGI           NRCGI
	NRPCI           uint16
	FiveGSTAC       []byte
}

// F1SetupRequest — DU → CU, per spec.md §4.7 and scenario S2.
type F1SetupRequest struct {
	GNBDUID          uint64
	GNBDUName        string
	ServedCellsToAdd []ServedCell
	GNBDURRCVersion  RRCVersion
}

// F1SetupResponse — CU → DU.
type F1SetupResponse struct {
	GNBCUName       string
	CellsToActivate []NRCGI
	GNBCURRCVersion RRCVersion
}

// F1SetupFailure — CU → DU, when validation of F1SetupRequest fails.
type F1SetupFailure struct {
	Cause string
}

// CpTransportLayerAddress is a tagged union with one variant in this
// revision, mirroring the Rust source's
// CpTransportLayerAddress::EndpointIpAddress.
type CpTransportLayerAddress struct {
	EndpointIPAddress net.IP
}

// TNLAssociationUsage mirrors the Rust enum of the same name.
type TNLAssociationUsage int

const (
	TNLAssociationUsageUL TNLAssociationUsage = iota
	TNLAssociationUsageDL
	TNLAssociationUsageBoth
)

// GnbCuTnlAssociationToAddItem is one entry of
// gnb_cu_tnl_association_to_add_list in GnbCuConfigurationUpdate.
type GnbCuTnlAssociationToAddItem struct {
	TNLAssociationTransportLayerAddress CpTransportLayerAddress
	TNLAssociationUsage                 TNLAssociationUsage
}

// GnbCuConfigurationUpdate — CU → DU, advertising the worker's own F1
// endpoint so the DU can correlate the CU side of the association, per
// the GNB-CU Configuration Update workflow.
type GnbCuConfigurationUpdate struct {
	GnbCuTnlAssociationToAddList []GnbCuTnlAssociationToAddItem
}

// GnbCuConfigurationUpdateAcknowledge — DU → CU.
type GnbCuConfigurationUpdateAcknowledge struct{}

// GnbCuConfigurationUpdateFailure — DU → CU.
type GnbCuConfigurationUpdateFailure struct {
	Cause string
}

// SpCell identifies the special cell an initial UE Context Setup attaches to.
type SpCell struct {
	ServCellIndex uint8
	ServCellID    NRCGI
}

// SRBToBeSetup is one SRB id to be set up on the DU.
type SRBToBeSetup struct {
	SRBID uint8
}

// GTPTunnel is a GTP-U tunnel endpoint, mirroring common/f1.GTPTunnel.
type GTPTunnel struct {
	TransportLayerAddress net.IP
	GTPTEID               uint32
}

// UPTransportLayerInformation wraps a GTP tunnel endpoint.
type UPTransportLayerInformation struct {
	GTPTunnel GTPTunnel
}

// QoSFlowLevelQoSParameters is carried per DRB in UEContextSetupRequest;
// kept minimal relative to common/f1's full descriptor since ASN.1 fidelity
// is out of scope.
type QoSFlowLevelQoSParameters struct {
	FiveQI uint8
}

// DRBToBeSetup is one DRB the CU asks the DU to establish, with its UL GTP
// tunnel endpoint (the CU-UP side, learned from the E1 bearer context
// setup response).
type DRBToBeSetup struct {
	DRBID       uint8
	QoSInfo     QoSFlowLevelQoSParameters
	ULUPTNLInfo []UPTransportLayerInformation
}

// UEContextSetupRequest — CU → DU, per the Initial UE Attach workflow step 8.
type UEContextSetupRequest struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
	SpCell        SpCell
	SRBsToBeSetup []SRBToBeSetup
	DRBsToBeSetup []DRBToBeSetup
}

// DRBSetup carries the DL tunnel endpoint the DU allocated for one DRB.
type DRBSetup struct {
	DRBID       uint8
	DLUPTNLInfo []UPTransportLayerInformation
}

// UEContextSetupResponse — DU → CU.
type UEContextSetupResponse struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
	DRBsSetup     []DRBSetup
}

// UEContextSetupFailure — DU → CU.
type UEContextSetupFailure struct {
	Cause string
}

// Cause is a minimal F1AP cause, enough to report a reason string without
// the full ASN.1 cause tree in common/f1.Cause.
type Cause struct {
	Value string
}

// UEContextReleaseCommand — CU → DU, per the UE Release workflow.
type UEContextReleaseCommand struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
	Cause         Cause
}

// UEContextReleaseComplete — DU → CU.
type UEContextReleaseComplete struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
}

// UEContextReleaseFailure — DU → CU; F1AP does not define one in the
// standard (release is not refusable), but the stack's Procedure shape
// requires a Failure type, so this is used only for transport-level
// encode/decode symmetry and is never constructed by a conformant DU mock.
type UEContextReleaseFailure struct {
	Cause string
}

// InitialULRRCMessage — DU → CU, the first uplink RRC message for a UE,
// per the Initial UE Attach workflow step 1.
type InitialULRRCMessage struct {
	GNBDUUEF1APID      uint32
	NRCGI              NRCGI
	CRNTI              uint16
	RRCContainer       []byte
	DUtoCURRCContainer []byte
}

// DLRRCMessage — CU → DU, carries a PDCP- or raw-framed RRC PDU downlink.
type DLRRCMessage struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
	SRBID         uint8
	RRCContainer  []byte
}

// ULRRCMessage — DU → CU, carries an uplink RRC PDU once the UE has a
// gnb_cu_ue_f1ap_id.
type ULRRCMessage struct {
	GNBCUUEF1APID uint32
	GNBDUUEF1APID uint32
	SRBID         uint8
	RRCContainer  []byte
}

// Procedure codes for F1AP request/response pairs.
const (
	ProcCodeF1Setup                  uint32 = 301
	ProcCodeGnbCuConfigurationUpdate uint32 = 302
	ProcCodeUEContextSetup           uint32 = 303
	ProcCodeUEContextRelease         uint32 = 304
)

// Indication codes for F1AP one-way messages.
const (
	IndCodeInitialULRRCMessage uint32 = 401
	IndCodeDLRRCMessage        uint32 = 402
	IndCodeULRRCMessage        uint32 = 403
)

func jsonEncode[T any](v T) ([]byte, error) { return stack.JSONCodec{}.EncodeValue(v) }

func jsonDecode[T any](data []byte) (T, error) {
	var v T
	err := stack.JSONCodec{}.DecodeValue(data, &v)
	return v, err
}

// GnbCuConfigurationUpdateProcedure is the descriptor for the CU → DU
// configuration-update handshake the worker initiates after answering
// F1SetupRequest.
var GnbCuConfigurationUpdateProcedure = stack.Procedure[GnbCuConfigurationUpdate, GnbCuConfigurationUpdateAcknowledge, GnbCuConfigurationUpdateFailure]{
	Name:          "GnbCuConfigurationUpdate",
	Code:          ProcCodeGnbCuConfigurationUpdate,
	EncodeRequest: jsonEncode[GnbCuConfigurationUpdate],
	DecodeSuccess: jsonDecode[GnbCuConfigurationUpdateAcknowledge],
	DecodeFailure: jsonDecode[GnbCuConfigurationUpdateFailure],
}

// UEContextSetupProcedure is the descriptor for the CU → DU UE Context
// Setup handshake.
var UEContextSetupProcedure = stack.Procedure[UEContextSetupRequest, UEContextSetupResponse, UEContextSetupFailure]{
	Name:          "UEContextSetup",
	Code:          ProcCodeUEContextSetup,
	EncodeRequest: jsonEncode[UEContextSetupRequest],
	DecodeSuccess: jsonDecode[UEContextSetupResponse],
	DecodeFailure: jsonDecode[UEContextSetupFailure],
}

// UEContextReleaseProcedure is the descriptor for the CU → DU UE Context
// Release handshake, per the UE Release workflow.
var UEContextReleaseProcedure = stack.Procedure[UEContextReleaseCommand, UEContextReleaseComplete, UEContextReleaseFailure]{
	Name:          "UEContextRelease",
	Code:          ProcCodeUEContextRelease,
	EncodeRequest: jsonEncode[UEContextReleaseCommand],
	DecodeSuccess: jsonDecode[UEContextReleaseComplete],
	DecodeFailure: jsonDecode[UEContextReleaseFailure],
}

// DLRRCMessageIndication sends a downlink RRC container to the DU.
var DLRRCMessageIndication = stack.Indication[DLRRCMessage]{
	Name:   "DLRRCMessageTransfer",
	Code:   IndCodeDLRRCMessage,
	Encode: jsonEncode[DLRRCMessage],
}

// Decode helpers used by the F1AP handler to interpret inbound
// InitiatingMessage/Indication envelopes.
func DecodeF1SetupRequest(payload []byte) (F1SetupRequest, error) {
	return jsonDecode[F1SetupRequest](payload)
}

func DecodeInitialULRRCMessage(payload []byte) (InitialULRRCMessage, error) {
	return jsonDecode[InitialULRRCMessage](payload)
}

func DecodeULRRCMessage(payload []byte) (ULRRCMessage, error) {
	return jsonDecode[ULRRCMessage](payload)
}

func EncodeF1SetupResponse(v F1SetupResponse) ([]byte, error) { return jsonEncode(v) }
func EncodeF1SetupFailure(v F1SetupFailure) ([]byte, error)   { return jsonEncode(v) }
