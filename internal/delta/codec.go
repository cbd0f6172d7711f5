package delta

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Codec turns a catalog Entry into the bytes handed to the sink. The wire
// format itself is out of scope for this package (SPEC_FULL.md §7
// non-goals); this default codec exists so the builder has something
// concrete to call, the way the reference tree always lands on
// encoding/json at its JSON boundaries (acl.Manager.writeUsersFile,
// json.MarshalIndent).
type Codec interface {
	// Encode serializes a live entry's payload. minimal selects the
	// identity-only projection described in spec.md §6.
	Encode(e *catalog.Entry, minimal bool) ([]byte, error)
	// EncodeTombstone serializes a tombstone's minimal invalidation payload.
	EncodeTombstone(t catalog.Tombstone, minimal bool) ([]byte, error)
}

// JSONCodec is the default Codec, encoding the full or minimal projection
// as JSON.
type JSONCodec struct{}

// minimalProjection returns the §6 MINIMAL-topic payload for kind, or nil
// if the kind is not published on the minimal topic at all.
func minimalProjection(key catalog.Key, payload catalog.Payload) (any, bool) {
	switch p := payload.(type) {
	case catalog.DatabasePayload:
		return map[string]string{"db_name": p.Name}, true
	case catalog.TablePayload:
		return map[string]string{"db_name": p.Database, "table_name": p.Table}, true
	case catalog.FunctionPayload:
		return map[string]string{"function_name": p.Name}, true
	case catalog.PrincipalPayload, catalog.PrivilegePayload, catalog.CatalogPayload:
		return payload, true // "full payload (no useful minimization)"
	default:
		// DATA_SOURCE / HDFS_CACHE_POOL: "not published on the minimal topic"
		return nil, false
	}
}

func (JSONCodec) Encode(e *catalog.Entry, minimal bool) ([]byte, error) {
	if !minimal {
		return json.Marshal(e.Payload)
	}
	proj, ok := minimalProjection(e.Key, e.Payload)
	if !ok {
		return nil, fmt.Errorf("delta: %s has no minimal projection", e.Key.Kind)
	}
	return json.Marshal(proj)
}

func (JSONCodec) EncodeTombstone(t catalog.Tombstone, minimal bool) ([]byte, error) {
	if !minimal {
		return json.Marshal(t.Payload)
	}
	proj, ok := minimalProjection(t.Key, t.Payload)
	if !ok {
		return nil, fmt.Errorf("delta: %s has no minimal projection", t.Key.Kind)
	}
	return json.Marshal(proj)
}
