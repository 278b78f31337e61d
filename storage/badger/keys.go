package badger

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Every tenant-owned key starts with tenantRoot:<hex(tenant)>/ so that a prefix scan
// built for one tenant cannot reach another tenant's keys.
const (
	tenantRoot          = "t:"
	documentSegment     = "doc/"
	recordSegment       = "rec/"
	recordDocSegment    = "recdoc/"
	citationFwdSegment  = "citfwd/"
	citationRevSegment  = "citrev/"
	checkpointKeyPrefix = "chkpt:"
)

// makeTenantPrefix generates the root prefix for every key owned by tenant.
// Format: t:hex(tenant)/
func makeTenantPrefix(tenant core.TenantID) []byte {
	return []byte(tenantRoot + hex.EncodeToString([]byte(tenant)) + "/")
}

// tenantFromKey recovers the tenant of a tenant-owned key.
func tenantFromKey(key []byte) (core.TenantID, bool) {
	s := string(key)
	if !strings.HasPrefix(s, tenantRoot) {
		return "", false
	}
	s = s[len(tenantRoot):]
	end := strings.IndexByte(s, '/')
	if end < 0 {
		return "", false
	}
	raw, err := hex.DecodeString(s[:end])
	if err != nil {
		return "", false
	}
	return core.TenantID(raw), true
}

func appendID(buf []byte, id core.ID) []byte {
	// BigEndian so lexicographic order equals numeric order
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

func idFromKeySuffix(key []byte) core.ID {
	if len(key) < 8 {
		return 0
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeDocumentPrefix generates the prefix of every document key of tenant.
func makeDocumentPrefix(tenant core.TenantID) []byte {
	return append(makeTenantPrefix(tenant), documentSegment...)
}

// makeDocumentKey generates a key for a document.
// Format: t:tenant/doc/id
func makeDocumentKey(tenant core.TenantID, id core.ID) []byte {
	return appendID(makeDocumentPrefix(tenant), id)
}

func partitionSegment(p storage.Partition) string {
	return fmt.Sprintf("%s/%s/%d/", p.Kind, hex.EncodeToString([]byte(p.Generation)), p.Dimension)
}

// makeRecordPartitionPrefix generates the prefix of every record in one partition.
// Format: t:tenant/rec/kind/hex(generation)/dimension/
func makeRecordPartitionPrefix(tenant core.TenantID, p storage.Partition) []byte {
	return append(append(makeTenantPrefix(tenant), recordSegment...), partitionSegment(p)...)
}

// makeRecordRootPrefix generates the prefix of every record of tenant.
func makeRecordRootPrefix(tenant core.TenantID) []byte {
	return append(makeTenantPrefix(tenant), recordSegment...)
}

// makeRecordKey generates a key for a record.
// Format: t:tenant/rec/kind/hex(generation)/dimension/id
func makeRecordKey(tenant core.TenantID, p storage.Partition, id core.ID) []byte {
	return appendID(makeRecordPartitionPrefix(tenant, p), id)
}

// partitionFromRecordKey parses the partition segment of a record key.
func partitionFromRecordKey(tenant core.TenantID, key []byte) (storage.Partition, bool) {
	root := makeRecordRootPrefix(tenant)
	if len(key) < len(root)+8 {
		return storage.Partition{}, false
	}
	parts := strings.Split(string(key[len(root):len(key)-8]), "/")
	if len(parts) != 4 || parts[3] != "" {
		return storage.Partition{}, false
	}
	gen, err := hex.DecodeString(parts[1])
	if err != nil {
		return storage.Partition{}, false
	}
	var dim int
	if _, err := fmt.Sscanf(parts[2], "%d", &dim); err != nil {
		return storage.Partition{}, false
	}
	return storage.Partition{Kind: core.ContentType(parts[0]), Generation: string(gen), Dimension: dim}, true
}

// makeDocumentRecordsPrefix generates the prefix of the per-document record index.
// Format: t:tenant/recdoc/docID/
func makeDocumentRecordsPrefix(tenant core.TenantID, docID core.ID) []byte {
	buf := append(makeTenantPrefix(tenant), recordDocSegment...)
	return append(appendID(buf, docID), '/')
}

// makeDocumentPartitionPrefix narrows the per-document index to one partition.
// Format: t:tenant/recdoc/docID/kind/hex(generation)/dimension/
func makeDocumentPartitionPrefix(tenant core.TenantID, docID core.ID, p storage.Partition) []byte {
	return append(makeDocumentRecordsPrefix(tenant, docID), partitionSegment(p)...)
}

// makeDocumentRecordKey generates a per-document index entry for a record.
func makeDocumentRecordKey(tenant core.TenantID, docID core.ID, p storage.Partition, id core.ID) []byte {
	return appendID(makeDocumentPartitionPrefix(tenant, docID, p), id)
}

// makeCitationPrefix generates the prefix of the citation edges of document in one direction.
// Format: t:tenant/citfwd/citingID/ or t:tenant/citrev/citedID/
func makeCitationPrefix(tenant core.TenantID, docID core.ID, dir core.Direction) []byte {
	segment := citationFwdSegment
	if dir == core.DirectionCitedBy {
		segment = citationRevSegment
	}
	buf := append(makeTenantPrefix(tenant), segment...)
	return append(appendID(buf, docID), '/')
}

// makeCitationKey generates a citation edge key.
func makeCitationKey(tenant core.TenantID, docID core.ID, dir core.Direction, citationID core.ID) []byte {
	return appendID(makeCitationPrefix(tenant, docID, dir), citationID)
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(checkpointKeyPrefix + processorType)
}
