package catalog

import "sort"

// Tombstone is an entry in the Delete Log (C, §3): the key removed, the
// version assigned to the removal, and enough of the object's last live
// payload for coordinators to invalidate their replicas and for the sink
// layer to build either a FULL or MINIMAL wire record (§6).
type Tombstone struct {
	Key     Key
	Version Version
	Payload Payload
}

// DeleteLog is the ordered record of tombstones (C). It is only ever
// mutated under the registry's F.write section, so it needs no lock of its
// own; the zero value is ready to use.
type DeleteLog struct {
	entries []Tombstone // ascending by Version, since insertion order == version order (I1)
}

// append records a tombstone. Callers must already hold F.write.
func (d *DeleteLog) append(t Tombstone) {
	d.entries = append(d.entries, t)
}

// Retrieve returns every tombstone with fromV < version <= toV, in version
// order (§4.3).
func (d *DeleteLog) Retrieve(fromV, toV Version) []Tombstone {
	lo := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Version > fromV })
	hi := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Version > toV })
	if lo >= hi {
		return nil
	}
	out := make([]Tombstone, hi-lo)
	copy(out, d.entries[lo:hi])
	return out
}

// GC drops every tombstone with version <= upTo (§4.3, I3).
func (d *DeleteLog) GC(upTo Version) {
	cut := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Version > upTo })
	if cut == 0 {
		return
	}
	remaining := len(d.entries) - cut
	copy(d.entries, d.entries[cut:])
	d.entries = d.entries[:remaining]
}

// Len reports the current tombstone count (diagnostics).
func (d *DeleteLog) Len() int { return len(d.entries) }
