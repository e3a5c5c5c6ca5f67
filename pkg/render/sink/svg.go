package sink

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/matzehuels/tractstory/pkg/chart"
)

const labelInteractionCSS = `
    .mark { transition: stroke-width 0.2s ease; stroke: #fff; stroke-width: 0.5; }
    .mark.highlight { stroke: #333; stroke-width: 2; }
    .lab-text[data-hover] { cursor: default; }`

const labelInteractionJS = `
    document.querySelectorAll('.lab-text[data-hover]').forEach(el => {
      const text = el.textContent;
      el.addEventListener('mouseenter', () => { el.textContent = el.dataset.hover; });
      el.addEventListener('mouseleave', () => { el.textContent = text; });
    });`

// SVGOption configures SVG rendering.
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	tooltips []chart.Tooltip
	title    string
	hidden   bool
}

// WithTooltips attaches one tooltip per mark, in mark order.
func WithTooltips(tips []chart.Tooltip) SVGOption {
	return func(r *svgRenderer) { r.tooltips = tips }
}

// WithTitle sets the document title.
func WithTitle(title string) SVGOption { return func(r *svgRenderer) { r.title = title } }

// WithHidden also writes furniture that is invisible in this state, so a
// client can fade it in.
func WithHidden() SVGOption { return func(r *svgRenderer) { r.hidden = true } }

// RenderSVG draws a snapshot.
func RenderSVG(snap chart.Snapshot, opts ...SVGOption) []byte {
	r := svgRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%s" height="%s" data-step="%s">`+"\n",
		num(snap.ViewW), num(snap.ViewH), num(snap.ViewW), num(snap.ViewH), snap.Step)
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escapeXML(r.title))
	}

	for _, e := range snap.Elements {
		if !e.Visible() && !r.hidden {
			continue
		}
		renderElement(&buf, e)
	}

	buf.WriteString(`  <g class="marks">` + "\n")
	for _, m := range snap.Marks {
		fmt.Fprintf(&buf, `    <circle class="mark" id="mark-%d" data-tract="%s" data-area="%s" cx="%s" cy="%s" r="%s" fill="%s" opacity="%s"/>`+"\n",
			m.Index, escapeXML(m.ID), escapeXML(m.Area), num(m.X), num(m.Y), num(m.R), m.Fill, num(m.Opacity))
	}
	buf.WriteString("  </g>\n")

	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", labelInteractionCSS)
	fmt.Fprintf(&buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", labelInteractionJS)

	if len(r.tooltips) > 0 {
		for i, tt := range r.tooltips {
			renderTooltip(&buf, i, tt)
		}
		renderTooltipScript(&buf)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderElement(buf *bytes.Buffer, e chart.Element) {
	switch e.Kind {
	case chart.KindAxis:
		renderAxis(buf, e)
	case chart.KindPath:
		fmt.Fprintf(buf, `  <path id="%s" class="%s" d="%s" fill="%s" stroke="%s" stroke-width="%s"%s opacity="%s"/>`+"\n",
			e.ID, e.Class, e.D, orNone(e.Fill), orNone(e.Stroke), num(e.StrokeWidth), dashAttr(e.Dash), num(e.Opacity))
	case chart.KindText:
		hover := ""
		if e.HoverText != "" {
			hover = fmt.Sprintf(` data-hover="%s"`, escapeXML(e.HoverText))
		}
		fmt.Fprintf(buf, `  <text id="%s" class="%s" x="%s" y="%s"%s%s fill="%s" opacity="%s"%s>%s</text>`+"\n",
			e.ID, e.Class, num(e.X), num(e.Y), anchorAttr(e.Anchor), fontAttrs(e.Font), e.Fill, num(e.Opacity), hover, escapeXML(e.Text))
	case chart.KindRect:
		fmt.Fprintf(buf, `  <rect id="%s" class="%s" x="%s" y="%s" width="%s" height="%s" fill="%s" opacity="%s"/>`+"\n",
			e.ID, e.Class, num(e.X), num(e.Y), num(e.W), num(e.H), e.Fill, num(e.Opacity))
	case chart.KindLegend:
		renderLegend(buf, e)
	}
}

// renderAxis draws ticks, labels and the domain line the way d3's axis
// generator lays them out.
func renderAxis(buf *bytes.Buffer, e chart.Element) {
	a := e.Axis
	if a == nil {
		return
	}
	fmt.Fprintf(buf, `  <g id="%s" class="axis %s" transform="translate(%s,%s)" opacity="%s" font-size="10" font-family="sans-serif">`+"\n",
		e.ID, e.Class, num(e.X), num(e.Y), num(e.Opacity))
	bottom := a.Orient == chart.OrientBottom
	if a.Domain {
		if bottom {
			fmt.Fprintf(buf, `    <path class="domain" stroke="currentColor" fill="none" d="M%s,%sV0H%sV%s"/>`+"\n",
				num(a.DomainStart), num(a.TickSize), num(a.DomainEnd), num(a.TickSize))
		} else {
			fmt.Fprintf(buf, `    <path class="domain" stroke="currentColor" fill="none" d="M-%s,%sH0V%sH-%s"/>`+"\n",
				num(a.TickSize), num(a.DomainStart), num(a.DomainEnd), num(a.TickSize))
		}
	}
	for _, t := range a.Ticks {
		if bottom {
			fmt.Fprintf(buf, `    <g class="tick" transform="translate(%s,0)"><line stroke="currentColor" y2="%s" stroke-opacity="%s"%s/><text fill="currentColor" y="%s" dy="0.71em" text-anchor="middle">%s</text></g>`+"\n",
				num(t.Pos), num(a.TickSize), num(a.TickOpacity), dashAttr(a.TickDash), num(a.TickSize+3), escapeXML(t.Label))
		} else {
			fmt.Fprintf(buf, `    <g class="tick" transform="translate(0,%s)"><line stroke="currentColor" x2="-%s" stroke-opacity="%s"%s/><text fill="currentColor" x="-%s" dy="0.32em" text-anchor="end">%s</text></g>`+"\n",
				num(t.Pos), num(a.TickSize), num(a.TickOpacity), dashAttr(a.TickDash), num(a.TickSize+3), escapeXML(t.Label))
		}
	}
	buf.WriteString("  </g>\n")
}

const (
	swatchRadius = 8
	swatchStep   = 25
)

func renderLegend(buf *bytes.Buffer, e chart.Element) {
	if e.Legend == nil {
		return
	}
	fmt.Fprintf(buf, `  <g id="%s" class="legend legend-%s" transform="translate(%s,%s)" opacity="%s">`+"\n",
		e.ID, e.Legend.Name, num(e.X), num(e.Y), num(e.Opacity))
	for i, s := range e.Legend.Swatches {
		y := float64(i * swatchStep)
		fmt.Fprintf(buf, `    <circle cx="0" cy="%s" r="%d" fill="%s"/><text x="15" y="%s" dy="0.32em" font-family="sans-serif" font-size="14">%s</text>`+"\n",
			num(y), swatchRadius, s.Color, num(y), escapeXML(s.Label))
	}
	buf.WriteString("  </g>\n")
}

// num writes a coordinate with at most two decimals.
func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func dashAttr(dash string) string {
	if dash == "" {
		return ""
	}
	return fmt.Sprintf(` stroke-dasharray="%s"`, dash)
}

func anchorAttr(anchor string) string {
	if anchor == "" {
		return ""
	}
	return fmt.Sprintf(` text-anchor="%s"`, anchor)
}

func fontAttrs(f *chart.Font) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf(` font-family="%s" font-size="%s" font-weight="%d"`, escapeXML(f.Family), num(f.Size), f.Weight)
}
