// Package layout holds the per-source document layouts that drive extraction
// and normalization. Layouts are plain configuration: the extractors are
// generic over them.
package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/order-transformer/constants"
	"github.com/joseph-ayodele/order-transformer/internal/common"
	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

//go:embed layouts.yaml
var defaultLayouts []byte

// Family selects the extractor implementation.
type Family string

const (
	FamilySPSCSV        Family = "sps_csv"
	FamilyPositionalPDF Family = "positional_pdf"
	FamilyLabeledHTML   Family = "labeled_html"
	FamilyTabular       Family = "tabular"
)

var families = []string{string(FamilySPSCSV), string(FamilyPositionalPDF), string(FamilyLabeledHTML), string(FamilyTabular)}

// Field keys used in Columns, Labels and Patterns.
const (
	FieldOrderNumber     = "order_number"
	FieldCustomer        = "customer"
	FieldStore           = "store"
	FieldRecordType      = "record_type"
	FieldItem            = "item"
	FieldUPC             = "upc"
	FieldDescription     = "description"
	FieldQuantity        = "quantity"
	FieldUnitCost        = "unit_cost"
	FieldTotal           = "total"
	FieldDiscountPercent = "discount_percent"
	FieldDiscountFlat    = "discount_flat"
)

// DateField is the key for a labeled date of the given role.
func DateField(role entity.DateRole) string {
	return "date." + string(role)
}

// DateRoles lists every role a layout may label, in reporting order.
var DateRoles = []entity.DateRole{
	entity.DateOrder,
	entity.DateRequestedDelivery,
	entity.DateShip,
	entity.DatePickup,
	entity.DateETA,
	entity.DateCancel,
}

// Column matching modes.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
)

// Pattern is one regex strategy. The first capture group (or the named group
// for item lines) is the value.
type Pattern struct {
	Name       string               `yaml:"name"`
	Regex      string               `yaml:"regex"`
	Confidence constants.Confidence `yaml:"confidence"`
	Prefix     string               `yaml:"prefix,omitempty"`
	Upper      bool                 `yaml:"upper,omitempty"`

	re *regexp.Regexp
}

// Re returns the compiled expression.
func (p *Pattern) Re() *regexp.Regexp { return p.re }

// Format applies Upper and Prefix to a captured value.
func (p *Pattern) Format(v string) string {
	v = strings.TrimSpace(v)
	if p.Upper {
		v = strings.ToUpper(v)
	}
	return p.Prefix + v
}

// Markers bound the item section. Line-oriented documents match them as
// substrings; row families compare End with the first non-empty cell.
type Markers struct {
	Start []string `yaml:"start"`
	End   []string `yaml:"end"`
	Skip  []string `yaml:"skip"`
}

// Items configures line item extraction.
type Items struct {
	Markers    Markers   `yaml:"markers"`
	Lines      []Pattern `yaml:"lines"`
	MinColumns int       `yaml:"min_columns"`
	Positional []string  `yaml:"positional"`
}

// Policy is consumed by the normalizer.
type Policy struct {
	OrderDate       []entity.DateRole   `yaml:"order_date"`
	ShipDate        []entity.DateRole   `yaml:"ship_date"`
	ShipOffsetDays  *int                `yaml:"ship_offset_days"`
	CustomerDefault string              `yaml:"customer_default"`
	StoreDefault    string              `yaml:"store_default"`
	ItemKeyTypes    []constants.KeyType `yaml:"item_key_types"`
}

// Layout is the tagged configuration of one source.
type Layout struct {
	Source      constants.Source     `yaml:"-"`
	Family      Family               `yaml:"family"`
	Formats     []constants.Format   `yaml:"formats"`
	ColumnMatch string               `yaml:"column_match"`
	Columns     map[string][]string  `yaml:"columns"`
	Labels      map[string][]string  `yaml:"labels"`
	Patterns    map[string][]Pattern `yaml:"patterns"`
	Items       Items                `yaml:"items"`
	Policy      Policy               `yaml:"policy"`
}

// Accepts reports whether the layout handles format. An empty Formats list accepts anything.
func (l *Layout) Accepts(f constants.Format) bool {
	return len(l.Formats) == 0 || slices.Contains(l.Formats, f)
}

// ItemKeyTypes returns the candidate key types for line items.
func (l *Layout) ItemKeyTypes() []constants.KeyType {
	if len(l.Policy.ItemKeyTypes) > 0 {
		return l.Policy.ItemKeyTypes
	}
	return constants.ItemKeyTypes
}

type file struct {
	Sources map[string]*Layout `yaml:"sources"`
}

// Set is an immutable collection of layouts keyed by source.
type Set struct {
	layouts map[constants.Source]*Layout
}

// For returns the layout for source.
func (s *Set) For(source constants.Source) (*Layout, bool) {
	l, ok := s.layouts[source]
	return l, ok
}

// Sources lists configured sources in sorted order.
func (s *Set) Sources() []constants.Source {
	out := make([]constants.Source, 0, len(s.layouts))
	for k := range s.layouts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Default parses the embedded layouts.
func Default() (*Set, error) {
	return Parse(defaultLayouts)
}

// Load parses the embedded layouts and, when overridePath is set, replaces
// or adds the sources defined in that file.
func Load(overridePath string) (*Set, error) {
	set, err := Default()
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return set, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "read layouts file", err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override.layouts {
		set.layouts[k] = v
	}
	return set, nil
}

// Parse validates data against the layout schema and compiles every pattern.
func Parse(data []byte) (*Set, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "layouts yaml", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "layouts yaml is not json compatible", err)
	}
	if err := ValidateAgainstSchema(BuildLayoutJSONSchema(), asJSON); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "layouts schema", err)
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "layouts decode", err)
	}

	set := &Set{layouts: make(map[constants.Source]*Layout, len(f.Sources))}
	for name, l := range f.Sources {
		src, _ := constants.CanonicalSource(name)
		l.Source = src
		if l.ColumnMatch == "" {
			l.ColumnMatch = MatchContains
		}
		if err := l.compile(); err != nil {
			return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("layout %s", name), err)
		}
		set.layouts[src] = l
	}
	return set, nil
}

func (l *Layout) compile() error {
	for field, list := range l.Patterns {
		for i := range list {
			re, err := regexp.Compile(list[i].Regex)
			if err != nil {
				return fmt.Errorf("pattern %s/%s: %w", field, list[i].Name, err)
			}
			if re.NumSubexp() < 1 {
				return fmt.Errorf("pattern %s/%s has no capture group", field, list[i].Name)
			}
			list[i].re = re
		}
	}
	for i := range l.Items.Lines {
		p := &l.Items.Lines[i]
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return fmt.Errorf("item line %s: %w", p.Name, err)
		}
		if re.SubexpIndex(FieldItem) < 0 || re.SubexpIndex(FieldQuantity) < 0 {
			return fmt.Errorf("item line %s needs named groups %q and %q", p.Name, FieldItem, FieldQuantity)
		}
		p.re = re
	}
	return nil
}
