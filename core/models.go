package core

import (
	"encoding/binary"
	"sort"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// TenantID is the opaque isolation boundary every stored entity and every query carries.
type TenantID string

// IsZero reports whether the tenant identifier is absent.
func (t TenantID) IsZero() bool {
	return strings.TrimSpace(string(t)) == ""
}

func (t TenantID) String() string {
	return string(t)
}

// ContentType names an embedding space. Each content type is embedded by its own
// model and stored in its own partition.
type ContentType string

const (
	// ContentDocument is the document-level summary embedding used for broad recall.
	ContentDocument ContentType = "document"
	// ContentChunk is a unit of retrievable document text.
	ContentChunk ContentType = "chunk"
	// ContentFormula is a symbolic expression extracted from a document.
	ContentFormula ContentType = "formula"
	// ContentTable is a table with its derived summary.
	ContentTable ContentType = "table"
	// ContentMethods is an experimental methods description.
	ContentMethods ContentType = "methods"
	// ContentSection is a titled document section.
	ContentSection ContentType = "section"
)

// ContentTypes lists every known embedding space in a stable order.
var ContentTypes = []ContentType{
	ContentDocument, ContentChunk, ContentFormula, ContentTable, ContentMethods, ContentSection,
}

// Valid reports whether c is one of the known content types.
func (c ContentType) Valid() bool {
	for _, known := range ContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// Direction selects which citation edges a traversal follows.
type Direction string

const (
	// DirectionCites follows edges from a document to the works it cites.
	DirectionCites Direction = "cites"
	// DirectionCitedBy follows edges from a document to the documents citing it.
	DirectionCitedBy Direction = "cited_by"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionCites || d == DirectionCitedBy
}

// Document is a top-level ingested unit such as a paper.
// Tags always contain the tenant tag; the remaining tags are free-form.
type Document struct {
	Id         ID
	Tenant     TenantID
	Title      string
	Authors    []string // Ordered as published
	Venue      string
	Year       int
	Identifier string // DOI, arXiv id or similar
	Tags       []string
	InsertedAt time.Time
	UpdatedAt  time.Time // Only tag updates and tenant reassignment change this
}

// Key returns the bibliographic identity of the document.
func (d *Document) Key() string {
	return BibliographicKey(d.Identifier, d.Title, d.Authors)
}

// DocumentID derives the content ID of a document from its bibliographic identity.
func DocumentID(d *Document) ID {
	return IDFromContent(d.Key())
}

// BibliographicKey normalizes the identity of a published work: its identifier when
// known, otherwise its title and authors.
func BibliographicKey(identifier, title string, authors []string) string {
	if id := strings.ToLower(strings.TrimSpace(identifier)); id != "" {
		return "id:" + id
	}
	return "bib:" + strings.ToLower(strings.TrimSpace(title)) + "|" + strings.Join(authors, ";")
}

// TenantTag returns the tag that marks a document as belonging to tenant.
func TenantTag(tenant TenantID) string {
	return "tenant:" + string(tenant)
}

// EnsureTenantTag returns tags with the tenant tag for tenant present exactly once and
// any other tenant tag removed. The result is sorted.
func EnsureTenantTag(tags []string, tenant TenantID) []string {
	want := TenantTag(tenant)
	seen := make(map[string]struct{}, len(tags)+1)
	out := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		if strings.HasPrefix(tag, "tenant:") && tag != want {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if _, ok := seen[want]; !ok {
		out = append(out, want)
	}
	sort.Strings(out)
	return out
}

// Record attribute names for the structured fields of specialized records.
const (
	AttrExpression     = "expression" // normalized symbolic expression (formula)
	AttrVariables      = "variables"  // comma separated variable names (formula)
	AttrColumns        = "columns"    // comma separated column headers (table)
	AttrRows           = "rows"       // row count (table)
	AttrSummary        = "summary"    // derived summary statistics (table)
	AttrDataset        = "dataset"    // methods
	AttrArchitecture   = "architecture"
	AttrTrainingConfig = "training_config"
	AttrHeading        = "heading" // section title
	AttrPage           = "page"    // chunk page number, when known
)

// Record is a retrievable child entity of a Document carrying one embedding vector.
// Chunks, formulas, tables, methods and sections are all records distinguished by Kind;
// the type-specific structured fields live in Attributes.
type Record struct {
	Id         ID
	Kind       ContentType
	Tenant     TenantID
	DocumentId ID
	Position   int    // Ordinal position inside the document
	Text       string // Text that was embedded and that lexical matching runs against
	Vector     []float32
	Dimension  int    // Declared dimensionality of Vector
	Generation string // Embedding model generation that produced Vector
	Attributes map[string]string
	InsertedAt time.Time
}

// Attr returns the named attribute or the empty string.
func (r *Record) Attr(name string) string {
	if r == nil || r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// HasAttrs reports whether every named attribute is present and non-blank.
func (r *Record) HasAttrs(names ...string) bool {
	for _, name := range names {
		if strings.TrimSpace(r.Attr(name)) == "" {
			return false
		}
	}
	return true
}

// Variables returns the formula variable names.
func (r *Record) Variables() []string {
	raw := r.Attr(AttrVariables)
	if raw == "" {
		return nil
	}
	var vars []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			vars = append(vars, v)
		}
	}
	return vars
}

// Citation is a directed edge from a citing document to a cited work.
// The cited work is held by value; CitedId is non-zero only when the cited work is
// itself a document in the corpus.
type Citation struct {
	Id              ID
	Tenant          TenantID // Tenant of the citing document
	CitingId        ID
	CitedId         ID
	CitedTitle      string
	CitedAuthors    []string
	CitedYear       int
	CitedIdentifier string
	ReferenceCount  int      // In-text references to the cited work
	Sections        []string // Section locations where the work is referenced
	InsertedAt      time.Time
}

// InCorpus reports whether the cited work resolves to a stored document.
func (c *Citation) InCorpus() bool {
	return c.CitedId != 0
}

// CitedKey returns the bibliographic identity of the cited work.
func (c *Citation) CitedKey() string {
	return BibliographicKey(c.CitedIdentifier, c.CitedTitle, c.CitedAuthors)
}

// Checkpoint records progress of a resumable batch job.
type Checkpoint struct {
	ProcessorType string
	Tenant        TenantID
	LastID        ID
	Processed     int
	UpdatedAt     time.Time
}

// ScoredRecord is a record returned by a similarity or lexical primitive.
// Score is cosine similarity for semantic matches and zero for lexical-only matches.
type ScoredRecord struct {
	Record *Record
	Score  float32
}
