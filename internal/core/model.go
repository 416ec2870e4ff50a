package core

// RawRecord is one historical chat record exactly as the relay backend
// returned it. Upstream adapters have produced several field layouts over
// the years, so no shape is guaranteed; consumers go through the msgview
// normalizer instead of reading fields directly.
type RawRecord map[string]any

// Segment is one typed unit of message content inside a record. The tag
// may live on the segment itself or under the nested data object; Data is
// nil when the segment carried no data object.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	Raw  map[string]any `json:"raw,omitempty"`
}

// Message is the canonical shape derived from one RawRecord.
// SenderID and DisplayName are always populated (positional placeholder
// when no source field yields a value); Segments is never nil.
type Message struct {
	SenderID    string    `json:"senderId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"` // empty when no avatar source exists
	Time        float64   `json:"time"`
	HasTime     bool      `json:"hasTime"`
	Segments    []Segment `json:"segments"`
}

// UnitKind discriminates the closed set of render unit variants.
type UnitKind string

const (
	UnitLines  UnitKind = "lines"
	UnitImage  UnitKind = "image"
	UnitLink   UnitKind = "link"
	UnitInline UnitKind = "inline"
)

// Unit is one rendered piece of message content. Exactly one unit is
// produced per input segment, in input order.
type Unit struct {
	Kind  UnitKind `json:"kind"`
	Lines []string `json:"lines,omitempty"` // UnitLines: ordered text lines
	URL   string   `json:"url,omitempty"`   // UnitImage / UnitLink: resolved media URL, may be empty for links
	Label string   `json:"label,omitempty"` // UnitLink / UnitInline / URL-less UnitImage: literal marker text
}

// ColorScheme is one entry of the fixed sender color palette: three style
// tokens applied by the display surface.
type ColorScheme struct {
	Gradient  string `json:"gradient"`
	Badge     string `json:"badge"`
	BadgeText string `json:"badgeText"`
}

// Rendered pairs a normalized message with its computed render units and
// color scheme; it is what the display surface consumes.
type Rendered struct {
	Message Message     `json:"message"`
	Units   []Unit      `json:"units"`
	Scheme  ColorScheme `json:"scheme"`
}
