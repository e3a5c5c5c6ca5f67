package chart

import (
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/scale"
)

// Kind is the shape of a piece of chart furniture.
type Kind int

const (
	KindAxis Kind = iota
	KindPath
	KindText
	KindRect
	KindLegend
)

var kindNames = map[Kind]string{
	KindAxis:   "axis",
	KindPath:   "path",
	KindText:   "text",
	KindRect:   "rect",
	KindLegend: "legend",
}

func (k Kind) String() string { return kindNames[k] }

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return tserrors.New(tserrors.ErrCodeInvalidFormat, "unknown element kind %q", b)
}

// Font is the typeface of text furniture.
type Font struct {
	Family string  `json:"family"`
	Size   float64 `json:"size"`
	Weight int     `json:"weight"`
}

// LabelFont is used by every text label on the canvas.
var LabelFont = Font{Family: "Noto Serif", Size: 18, Weight: 700}

// Orient is the side of an axis its labels sit on.
type Orient int

const (
	OrientBottom Orient = iota
	OrientLeft
)

// Tick is one labelled position on an axis.
type Tick struct {
	Value float64 `json:"value"`
	Pos   float64 `json:"pos"`
	Label string  `json:"label"`
}

// Axis is the geometry of an axis element. Ticks are laid out along x for
// bottom axes and along y for left axes, offset by the element's X and Y.
type Axis struct {
	Orient      Orient  `json:"orient"`
	Ticks       []Tick  `json:"ticks"`
	TickSize    float64 `json:"tick_size"`
	TickOpacity float64 `json:"tick_opacity"`
	TickDash    string  `json:"tick_dash,omitempty"`
	Domain      bool    `json:"domain"`
	DomainStart float64 `json:"domain_start"`
	DomainEnd   float64 `json:"domain_end"`
}

// Element is one piece of chart furniture. Its Tags name the steps that may
// show it; rendering any other step hides it.
type Element struct {
	ID      string  `json:"id"`
	Class   string  `json:"class"`
	Kind    Kind    `json:"kind"`
	Tags    StepSet `json:"tags"`
	Area    string  `json:"area,omitempty"`
	Opacity float64 `json:"opacity"`

	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w,omitempty"`
	H float64 `json:"h,omitempty"`

	Text      string `json:"text,omitempty"`
	HoverText string `json:"hover_text,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
	Font      *Font  `json:"font,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	Dash        string  `json:"dash,omitempty"`
	D           string  `json:"d,omitempty"`

	Axis   *Axis         `json:"axis,omitempty"`
	Legend *scale.Legend `json:"legend,omitempty"`
}

// DisplayText returns the label shown with or without pointer hover. Labels
// with hover text swap to it while hovered.
func (e Element) DisplayText(hovered bool) string {
	if hovered && e.HoverText != "" {
		return e.HoverText
	}
	return e.Text
}

// Visible reports whether the element is drawn at all.
func (e Element) Visible() bool {
	return e.Opacity > 0
}

func (e *Element) clone() Element {
	c := *e
	if e.Axis != nil {
		a := *e.Axis
		a.Ticks = append([]Tick(nil), e.Axis.Ticks...)
		c.Axis = &a
	}
	if e.Legend != nil {
		l := *e.Legend
		l.Swatches = append([]scale.Swatch(nil), e.Legend.Swatches...)
		c.Legend = &l
	}
	if e.Font != nil {
		f := *e.Font
		c.Font = &f
	}
	return c
}

func labelFont() *Font {
	f := LabelFont
	return &f
}
