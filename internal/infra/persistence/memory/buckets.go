package memory

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// SnapshotBuckets lists the persisted bucket names in write order.
var SnapshotBuckets = []string{"samples", "object_types", "items", "collections", "associations"}

func (s *Snapshot) bucketTarget(name string) any {
	switch name {
	case "samples":
		return &s.Samples
	case "object_types":
		return &s.ObjectTypes
	case "items":
		return &s.Items
	case "collections":
		return &s.Collections
	case "associations":
		return &s.Associations
	default:
		return nil
	}
}

// EncodeBuckets renders each snapshot bucket as a JSON payload keyed by bucket name.
func (s Snapshot) EncodeBuckets() (map[string][]byte, error) {
	out := make(map[string][]byte, len(SnapshotBuckets))
	for _, name := range SnapshotBuckets {
		data, err := json.Marshal(s.bucketTarget(name))
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// DecodeBucket fills one snapshot bucket from its JSON payload. Unknown
// buckets and empty payloads are ignored.
func (s *Snapshot) DecodeBucket(name string, payload []byte) error {
	target := s.bucketTarget(name)
	if target == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Digests remembers the payload hash last written for each bucket so
// snapshotting stores only rewrite buckets a transaction changed.
type Digests map[string][sha256.Size]byte

// Changed lists, in SnapshotBuckets order, the buckets whose payload differs
// from the recorded digest.
func (d Digests) Changed(buckets map[string][]byte) []string {
	var out []string
	for _, name := range SnapshotBuckets {
		payload, ok := buckets[name]
		if !ok {
			continue
		}
		if prev, seen := d[name]; seen && prev == sha256.Sum256(payload) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Record marks the named buckets as written with their current payloads.
func (d Digests) Record(buckets map[string][]byte, names []string) {
	for _, name := range names {
		if payload, ok := buckets[name]; ok {
			d[name] = sha256.Sum256(payload)
		}
	}
}
