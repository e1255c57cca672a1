package types

// Contract is a deployed smart contract record. created at
// deployment block commit, never destroyed (only possibly unwound by
// reorg), unique by both ContractAddress and TweakedPubKey.
type Contract struct {
	ContractAddress  Address
	TweakedPubKey    [32]byte
	Deployer         [32]byte // x-only pubkey
	BytecodeHash     Hash
	Bytecode         []byte
	DeploymentTxID   Hash
	DeploymentHeight uint64
}

// PointerValue is one contract storage slot at a given height, with its
// membership proof against that height's storage root.
type PointerValue struct {
	ContractAddress Address
	Pointer         [32]byte
	Value           [32]byte
	LastSeenAt      uint64
	Proof           MerkleProof
}

// MerkleProof is a generic sibling-path proof, shared by the storage and
// receipt trees (internal/core/merkle).
type MerkleProof struct {
	LeafIndex uint64
	Siblings  []Hash
}
