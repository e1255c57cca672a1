// PSBT processing: a type-keyed dispatch table reserved per spec's design
// note (§9 "PSBT processor plug-points") even though no processor is
// currently active. Modeled on the teacher's rpcHandlers/rpcUnimplemented
// map-of-maps idiom in infrastructure/network/rpc/rpcserver.go, where an
// unimplemented method still occupies a slot in the dispatch map rather
// than being absent from it. PSBT parsing itself uses
// github.com/btcsuite/btcd/btcutil/psbt, the same dependency
// sputn1ck-taproot-assets and Jason-chen-taiwan-arcSignv2 use.
package mempool

import (
	"bytes"
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
)

// PSBTType tags which processor a parsed PSBT dispatches to.
type PSBTType uint8

const (
	// PSBTTypeUnwrap is the only currently-defined type. Its processor is
	// disabled (spec §9); the slot stays reserved so a future processor
	// has somewhere to register without changing the dispatch shape.
	PSBTTypeUnwrap PSBTType = iota
)

// PSBTProcessResult is what a PSBTProcessor reports back to Admit.
type PSBTProcessResult struct {
	PSBT      *psbt.Packet
	Modified  bool
	Finalized bool
}

// PSBTProcessor handles one PSBT type end to end: validate, optionally
// modify, and attempt finalization.
type PSBTProcessor interface {
	Process(ctx context.Context, p *psbt.Packet) (PSBTProcessResult, error)
}

// defaultPSBTDispatch returns the reserved, empty dispatch table. No type
// is registered: every PSBT this node sees today classifies to "no
// processor available" and is rejected, exactly as the teacher's
// rpcUnimplemented entries reject a call rather than panic on a missing
// map key.
func defaultPSBTDispatch() map[PSBTType]PSBTProcessor {
	return map[PSBTType]PSBTProcessor{}
}

// classifyPSBTType inspects a parsed PSBT's proprietary fields to decide
// which processor type it is. With no processor registered, every PSBT
// currently classifies as PSBTTypeUnwrap so it hits the same "no
// processor" rejection path uniformly.
func classifyPSBTType(p *psbt.Packet) PSBTType {
	_ = p
	return PSBTTypeUnwrap
}

// admitPSBT runs the PSBT path of spec §4.7 step 6: parse, dispatch by
// type, and report whether the processor finalized the packet. Nothing is
// broadcast from here, finalized or not.
func (p *Pool) admitPSBT(ctx context.Context, raw []byte) (AdmitResult, error) {
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return AdmitResult{}, errs.New(errs.KindValidation, err)
	}

	kind := classifyPSBTType(packet)
	proc, ok := p.psbtTypes[kind]
	if !ok {
		return AdmitResult{}, errs.Wrapf(errs.KindValidation, "no PSBT processor registered for type %d", kind)
	}

	result, err := proc.Process(ctx, packet)
	if err != nil {
		return AdmitResult{}, err
	}

	admit := AdmitResult{Success: true, Finalized: result.Finalized}
	if result.Modified {
		var buf bytes.Buffer
		if err := result.PSBT.Serialize(&buf); err != nil {
			return AdmitResult{}, errs.New(errs.KindValidation, err)
		}
		admit.Modified = buf.Bytes()
	}
	return admit, nil
}
