package vm

import "github.com/btc-vision/opnet-node-sub009/internal/core/types"

// storageKey identifies one persistent storage slot.
type storageKey struct {
	contract string
	pointer  [32]byte
}

// journalEntry records one persistent-storage write so a revert can pop
// it back out. Reads do not need journaling, since only writes buffer
// per-tx and commit on outermost success.
type journalEntry struct {
	key      storageKey
	oldValue [32]byte
	hadOld   bool
}

// Journal buffers permanent-storage writes across an entire call stack
// (one per top-level invocation), with per-frame snapshots so a revert at
// any depth unwinds only that frame's entries and nothing above it.
type Journal struct {
	entries []journalEntry
	current map[storageKey][32]byte // latest buffered value per key, for read-your-writes
}

// NewJournal builds an empty journal.
func NewJournal() *Journal {
	return &Journal{current: make(map[storageKey][32]byte)}
}

// Snapshot returns a marker to later Revert back to.
func (j *Journal) Snapshot() int {
	return len(j.entries)
}

// Write records a storage write, remembering the previous buffered value
// (or signalling there was none) so Revert can restore it.
func (j *Journal) Write(contract types.Address, pointer, value [32]byte, oldValue [32]byte, hadOld bool) {
	key := storageKey{contract: contract.String(), pointer: pointer}
	j.entries = append(j.entries, journalEntry{key: key, oldValue: oldValue, hadOld: hadOld})
	j.current[key] = value
}

// Read returns the latest buffered value for a key, if any has been
// written this call stack.
func (j *Journal) Read(contract types.Address, pointer [32]byte) ([32]byte, bool) {
	v, ok := j.current[storageKey{contract: contract.String(), pointer: pointer}]
	return v, ok
}

// Revert pops every entry back to snapshot, restoring prior buffered
// values (or clearing the key entirely if it had none).
func (j *Journal) Revert(snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		e := j.entries[i]
		if e.hadOld {
			j.current[e.key] = e.oldValue
		} else {
			delete(j.current, e.key)
		}
	}
	j.entries = j.entries[:snapshot]
}

// ChangedStorage returns the final buffered (contract, pointer, value)
// writes, in first-write order, deduplicated to last-value-wins — what
// internal/core/statecommit needs to build the storage tree for this tx.
func (j *Journal) ChangedStorage(resolveAddr func(string) types.Address) []types.PointerValue {
	seen := make(map[storageKey]bool)
	var out []types.PointerValue
	for i := 0; i < len(j.entries); i++ {
		e := j.entries[i]
		if seen[e.key] {
			continue
		}
		seen[e.key] = true
		value, ok := j.current[e.key]
		if !ok {
			continue
		}
		out = append(out, types.PointerValue{
			ContractAddress: resolveAddr(e.key.contract),
			Pointer:         e.key.pointer,
			Value:           value,
		})
	}
	return out
}
