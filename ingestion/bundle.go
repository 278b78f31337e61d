package ingestion

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"gopkg.in/yaml.v3"
)

// Bundle is one extracted document ready for storage.
type Bundle struct {
	Tenant   core.TenantID `yaml:"tenant"`
	Document DocumentSpec  `yaml:"document"`
	// Summary is embedded as the document-level record. The title is used when empty.
	Summary   string         `yaml:"summary"`
	Chunks    []ChunkSpec    `yaml:"chunks"`
	Formulas  []FormulaSpec  `yaml:"formulas"`
	Tables    []TableSpec    `yaml:"tables"`
	Methods   []MethodsSpec  `yaml:"methods"`
	Sections  []SectionSpec  `yaml:"sections"`
	Citations []CitationSpec `yaml:"citations"`
}

type DocumentSpec struct {
	Title      string   `yaml:"title"`
	Authors    []string `yaml:"authors"`
	Venue      string   `yaml:"venue"`
	Year       int      `yaml:"year"`
	Identifier string   `yaml:"identifier"`
	Tags       []string `yaml:"tags"`
}

type ChunkSpec struct {
	Text string `yaml:"text"`
	Page int    `yaml:"page"`
}

type FormulaSpec struct {
	Text       string   `yaml:"text"`
	Expression string   `yaml:"expression"`
	Variables  []string `yaml:"variables"`
}

type TableSpec struct {
	Text    string   `yaml:"text"`
	Columns []string `yaml:"columns"`
	Rows    int      `yaml:"rows"`
	Summary string   `yaml:"summary"`
}

type MethodsSpec struct {
	Text           string `yaml:"text"`
	Dataset        string `yaml:"dataset"`
	Architecture   string `yaml:"architecture"`
	TrainingConfig string `yaml:"training_config"`
}

type SectionSpec struct {
	Heading string `yaml:"heading"`
	Text    string `yaml:"text"`
}

// CitationSpec describes a cited work. The work is linked to a stored document of
// the same tenant when their bibliographic identities match.
type CitationSpec struct {
	Title      string   `yaml:"title"`
	Authors    []string `yaml:"authors"`
	Year       int      `yaml:"year"`
	Identifier string   `yaml:"identifier"`
	References int      `yaml:"references"`
	Sections   []string `yaml:"sections"`
}

// Key returns the bibliographic identity of the cited work.
func (c CitationSpec) Key() string {
	return core.BibliographicKey(c.Identifier, c.Title, c.Authors)
}

// ReadBundles decodes every YAML document of r as a bundle.
func ReadBundles(r io.Reader) ([]*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var bundles []*Bundle
	for {
		b := &Bundle{}
		err := dec.Decode(b)
		if errors.Is(err, io.EOF) {
			return bundles, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bundle %d: %w", ErrInvalidBundle, len(bundles)+1, err)
		}
		bundles = append(bundles, b)
	}
}

// ReadBundleFile reads every bundle of a YAML file.
func ReadBundleFile(path string) ([]*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBundles(f)
}

// Tree converts the bundle into an unembedded document tree. Citations are left
// unresolved.
func (b *Bundle) Tree() (*storage.DocumentTree, error) {
	if b.Tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, core.ErrMissingTenant)
	}
	doc := &core.Document{
		Tenant:     b.Tenant,
		Title:      strings.TrimSpace(b.Document.Title),
		Authors:    b.Document.Authors,
		Venue:      b.Document.Venue,
		Year:       b.Document.Year,
		Identifier: b.Document.Identifier,
		Tags:       b.Document.Tags,
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}

	tree := &storage.DocumentTree{Document: doc}
	add := func(kind core.ContentType, text string, attrs map[string]string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		tree.Records = append(tree.Records, &core.Record{
			Kind:       kind,
			Tenant:     b.Tenant,
			Position:   len(tree.Records),
			Text:       text,
			Attributes: attrs,
		})
	}

	summary := b.Summary
	if strings.TrimSpace(summary) == "" {
		summary = doc.Title
	}
	add(core.ContentDocument, summary, nil)
	for _, c := range b.Chunks {
		var attrs map[string]string
		if c.Page > 0 {
			attrs = map[string]string{core.AttrPage: strconv.Itoa(c.Page)}
		}
		add(core.ContentChunk, c.Text, attrs)
	}
	for _, f := range b.Formulas {
		text := f.Text
		if text == "" {
			text = f.Expression
		}
		add(core.ContentFormula, text, compact(map[string]string{
			core.AttrExpression: f.Expression,
			core.AttrVariables:  strings.Join(f.Variables, ","),
		}))
	}
	for _, t := range b.Tables {
		rows := ""
		if t.Rows > 0 {
			rows = strconv.Itoa(t.Rows)
		}
		add(core.ContentTable, t.Text, compact(map[string]string{
			core.AttrColumns: strings.Join(t.Columns, ","),
			core.AttrRows:    rows,
			core.AttrSummary: t.Summary,
		}))
	}
	for _, m := range b.Methods {
		add(core.ContentMethods, m.Text, compact(map[string]string{
			core.AttrDataset:        m.Dataset,
			core.AttrArchitecture:   m.Architecture,
			core.AttrTrainingConfig: m.TrainingConfig,
		}))
	}
	for _, s := range b.Sections {
		add(core.ContentSection, s.Text, compact(map[string]string{core.AttrHeading: s.Heading}))
	}

	for _, c := range b.Citations {
		citation := &core.Citation{
			Tenant:          b.Tenant,
			CitedTitle:      c.Title,
			CitedAuthors:    c.Authors,
			CitedYear:       c.Year,
			CitedIdentifier: c.Identifier,
			ReferenceCount:  c.References,
			Sections:        c.Sections,
		}
		if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Identifier) == "" {
			return nil, fmt.Errorf("%w: citation %d has neither title nor identifier", ErrInvalidBundle, len(tree.Citations)+1)
		}
		tree.Citations = append(tree.Citations, citation)
	}
	return tree, nil
}

func compact(attrs map[string]string) map[string]string {
	for k, v := range attrs {
		if strings.TrimSpace(v) == "" {
			delete(attrs, k)
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
