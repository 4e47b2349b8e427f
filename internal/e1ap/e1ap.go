// Package e1ap supplies the E1 interface's PDU types and stack.Procedure
// descriptor for bearer context setup, adapted from common/f1's GTP tunnel
// and QoS types (there is no dedicated E1 surface in the teacher repo;
// E1AP mirrors F1AP's UE-context bearer fields closely enough in TS 38.463
// that the same GTPTunnel/QoS shapes apply here).
package e1ap

import (
	"net"

	"github.com/your-org/gnb-cu-cp/internal/stack"
)

// GTPTunnel is a GTP-U tunnel endpoint on the E1 interface.
type GTPTunnel struct {
	TransportLayerAddress net.IP
	GTPTEID               uint32
}

// UPTransportLayerInformation wraps a GTP tunnel endpoint.
type UPTransportLayerInformation struct {
	GTPTunnel GTPTunnel
}

// QoSFlowLevelQoSParameters mirrors f1ap's minimal QoS descriptor.
type QoSFlowLevelQoSParameters struct {
	FiveQI uint8
}

// PDUSessionToSetup is one PDU session the CU-CP asks the CU-UP to
// establish bearer resources for.
type PDUSessionToSetup struct {
	PDUSessionID uint8
	DRBsToSetup  []DRBToSetup
}

// DRBToSetup is one DRB within a PDU session, with its QoS. It carries no
// tunnel endpoint; the CU-UP allocates the UL endpoint and returns it in
// DRBSetup.
type DRBToSetup struct {
	DRBID   uint8
	QoSInfo QoSFlowLevelQoSParameters
}

// BearerContextSetupRequest — gNB-CU-CP → gNB-CU-UP, per Initial UE Attach
// workflow step 8.
type BearerContextSetupRequest struct {
	GNBCUCPUEE1APID    uint32
	PDUSessionsToSetup []PDUSessionToSetup
}

// DRBSetup carries the CU-UP-allocated UL tunnel endpoint for one DRB.
type DRBSetup struct {
	DRBID       uint8
	ULUPTNLInfo []UPTransportLayerInformation
}

// PDUSessionSetup carries the per-session DRB setup results.
type PDUSessionSetup struct {
	PDUSessionID uint8
	DRBsSetup    []DRBSetup
}

// BearerContextSetupResponse — gNB-CU-UP → gNB-CU-CP.
type BearerContextSetupResponse struct {
	GNBCUCPUEE1APID  uint32
	GNBCUUPUEE1APID  uint32
	PDUSessionsSetup []PDUSessionSetup
}

// BearerContextSetupFailure — gNB-CU-UP → gNB-CU-CP.
type BearerContextSetupFailure struct {
	Cause string
}

// BearerContextReleaseCommand — gNB-CU-CP → gNB-CU-UP, issued alongside
// the F1 UE Context Release during the UE Release workflow.
type BearerContextReleaseCommand struct {
	GNBCUCPUEE1APID uint32
	GNBCUUPUEE1APID uint32
}

// BearerContextReleaseComplete — gNB-CU-UP → gNB-CU-CP.
type BearerContextReleaseComplete struct {
	GNBCUCPUEE1APID uint32
	GNBCUUPUEE1APID uint32
}

// BearerContextReleaseFailure mirrors f1ap's release-failure placeholder:
// E1AP release is not refusable in the standard, but the stack's
// Procedure shape requires a Failure type for transport-level symmetry.
type BearerContextReleaseFailure struct {
	Cause string
}

const (
	ProcCodeBearerContextSetup   uint32 = 501
	ProcCodeBearerContextRelease uint32 = 502
)

func jsonEncode[T any](v T) ([]byte, error) { return stack.JSONCodec{}.EncodeValue(v) }

func jsonDecode[T any](data []byte) (T, error) {
	var v T
	err := stack.JSONCodec{}.DecodeValue(data, &v)
	return v, err
}

// BearerContextSetupProcedure is the descriptor for the CU-CP → CU-UP
// bearer context setup handshake.
var BearerContextSetupProcedure = stack.Procedure[BearerContextSetupRequest, BearerContextSetupResponse, BearerContextSetupFailure]{
	Name:          "BearerContextSetup",
	Code:          ProcCodeBearerContextSetup,
	EncodeRequest: jsonEncode[BearerContextSetupRequest],
	DecodeSuccess: jsonDecode[BearerContextSetupResponse],
	DecodeFailure: jsonDecode[BearerContextSetupFailure],
}

// BearerContextReleaseProcedure is the descriptor for the CU-CP → CU-UP
// bearer context release handshake, per the UE Release workflow.
var BearerContextReleaseProcedure = stack.Procedure[BearerContextReleaseCommand, BearerContextReleaseComplete, BearerContextReleaseFailure]{
	Name:          "BearerContextRelease",
	Code:          ProcCodeBearerContextRelease,
	EncodeRequest: jsonEncode[BearerContextReleaseCommand],
	DecodeSuccess: jsonDecode[BearerContextReleaseComplete],
	DecodeFailure: jsonDecode[BearerContextReleaseFailure],
}
