package stack

import "encoding/json"

// Kind discriminates the four message shapes spec.md §4.1 dispatches on.
type Kind int

const (
	KindInitiatingMessage Kind = iota
	KindSuccessfulOutcome
	KindUnsuccessfulOutcome
	KindIndicationMessage
)

// Envelope is the decoded shell common to every PDU on every stack: a
// procedure code, a transaction id (meaningless for indications), a kind,
// and an opaque payload that the procedure's own Encode/Decode callbacks
// interpret.
type Envelope struct {
	ProcedureCode uint32
	TransactionID uint32
	Kind          Kind
	Payload       []byte
}

// Codec is the seam real 3GPP ASN.1/PER encoders plug into (out of scope
// per spec.md §1). It is split from the per-procedure Encode/Decode
// callbacks in Procedure/Indication: Codec handles the envelope framing
// that every PDU shares; the procedure callbacks handle the
// procedure-specific payload shape.
//
// The shipped JSONCodec is a placeholder in exactly the spirit of the
// teacher's own simplified RRC/PFCP encodings (nf/gnb/internal/cu/cu.go's
// createRRCSetup, nf/smf/internal/n4/pfcp.go's hand-rolled header) — good
// enough to drive the worker's control flow and tests, not a conformant
// wire format.
type Codec interface {
	EncodeEnvelope(e Envelope) ([]byte, error)
	DecodeEnvelope(data []byte) (Envelope, error)
	EncodeValue(v any) ([]byte, error)
	DecodeValue(data []byte, v any) error
}

// JSONCodec implements Codec using encoding/json for both the envelope
// wrapper and procedure payloads.
type JSONCodec struct{}

// wireEnvelope is the JSON-serializable shape of Envelope.
type wireEnvelope struct {
	ProcedureCode uint32 `json:"procedure_code"`
	TransactionID uint32 `json:"transaction_id"`
	Kind          Kind   `json:"kind"`
	Payload       []byte `json:"payload"`
}

func (JSONCodec) EncodeEnvelope(e Envelope) ([]byte, error) {
	return json.Marshal(wireEnvelope{
		ProcedureCode: e.ProcedureCode,
		TransactionID: e.TransactionID,
		Kind:          e.Kind,
		Payload:       e.Payload,
	})
}

func (JSONCodec) DecodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ProcedureCode: w.ProcedureCode,
		TransactionID: w.TransactionID,
		Kind:          w.Kind,
		Payload:       w.Payload,
	}, nil
}

func (JSONCodec) EncodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) DecodeValue(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
