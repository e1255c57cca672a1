package types

// OverlayKind tags the classification variant of an overlay transaction:
// Generic, Deployment, or Interaction.
type OverlayKind uint8

const (
	OverlayGeneric OverlayKind = iota
	OverlayDeployment
	OverlayInteraction
)

func (k OverlayKind) String() string {
	switch k {
	case OverlayDeployment:
		return "Deployment"
	case OverlayInteraction:
		return "Interaction"
	default:
		return "Generic"
	}
}

// TxInput is one input of a classified overlay transaction.
type TxInput struct {
	PrevTxID Hash
	PrevVout uint32
	Witness  [][]byte // witness stack, when present
}

// TxOutput is one output of a classified overlay transaction.
type TxOutput struct {
	Value   U256
	Script  []byte
	Address Address
}

// InteractionFeature is a single bit of an Interaction's Features bitset.
type InteractionFeature uint64

// AccessList is currently the only defined feature bit.
const AccessList InteractionFeature = 1 << 0

// OverlayTx is a classified base-chain transaction. Every variant carries
// the common fields; Deployment and Interaction additionally carry their
// variant-specific fields (zero-valued when the respective pointer is nil
// on another kind, but we store the kind-specific data inline behind
// pointers so a Generic tx pays no extra size).
type OverlayTx struct {
	Kind         OverlayKind
	TxID         Hash
	IndexingHash Hash // derived from TxID + classification vin
	BlockHeight  uint64
	Inputs       []TxInput
	Outputs      []TxOutput

	Deployment  *DeploymentData
	Interaction *InteractionData
}

// DeploymentData holds the fields unique to a Deployment overlay tx.
type DeploymentData struct {
	DeployerPubKey [32]byte // x-only
	SaltPubKey     [32]byte // x-only
	Salt           [32]byte
	Bytecode       []byte
	ContractAddr   Address // derived; see internal/core/taproot
}

// InteractionData holds the fields unique to an Interaction overlay tx.
type InteractionData struct {
	ContractAddr        Address
	Calldata             []byte
	TheoreticalGasLimit  U256
	PriorityFee          U256
	Features             InteractionFeature
}

// HasFeature reports whether the Interaction declared the given feature bit.
func (d *InteractionData) HasFeature(f InteractionFeature) bool {
	return d != nil && d.Features&f != 0
}

// PriorityFeeOf returns the fee used for execution ordering: the
// Interaction's declared PriorityFee, or zero for every other kind
// (Deployment and Generic transactions do not carry a burned priority fee
// in this model).
func (tx *OverlayTx) PriorityFeeOf() U256 {
	if tx.Interaction != nil {
		return tx.Interaction.PriorityFee
	}
	return ZeroU256()
}
