package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/matzehuels/tractstory/pkg/chart"
)

const (
	tooltipCSS = `
    .tooltip { pointer-events: none; transition: opacity 0.15s ease; }
    .tooltip[visibility="hidden"] { opacity: 0; }
    .tooltip[visibility="visible"] { opacity: 0.95; }`

	tooltipJS = `
    const svg = document.querySelector('svg');
    const vb = svg.viewBox.baseVal;
    document.querySelectorAll('.mark').forEach(el => {
      const tip = document.querySelector('.tooltip[data-for="' + el.id + '"]');
      if (!tip) return;
      el.addEventListener('mouseenter', () => {
        el.classList.add('highlight');
        const box = tip.getBBox();
        let x = el.cx.baseVal.value + 12;
        let y = el.cy.baseVal.value - box.height / 2;
        if (x + box.width > vb.x + vb.width - 10) x = el.cx.baseVal.value - box.width - 12;
        y = Math.max(vb.y + 10, Math.min(y, vb.y + vb.height - box.height - 10));
        tip.setAttribute('transform', 'translate(' + x.toFixed(1) + ',' + y.toFixed(1) + ')');
        tip.setAttribute('visibility', 'visible');
      });
      el.addEventListener('mouseleave', () => {
        el.classList.remove('highlight');
        tip.setAttribute('visibility', 'hidden');
      });
    });`
)

const (
	tooltipWidth      = 230
	tooltipLineHeight = 18
	tooltipPadding    = 8
)

func renderTooltip(buf *bytes.Buffer, i int, tt chart.Tooltip) {
	h := float64(len(tt.Lines)*tooltipLineHeight + 2*tooltipPadding)
	fmt.Fprintf(buf, `  <g class="tooltip" data-for="mark-%d" visibility="hidden">`+"\n", i)
	fmt.Fprintf(buf, `    <rect width="%d" height="%s" rx="4" fill="#fff" stroke="#999"/>`+"\n", tooltipWidth, num(h))
	for j, l := range tt.Lines {
		y := tooltipPadding + (j+1)*tooltipLineHeight - 4
		fmt.Fprintf(buf, `    <text x="%d" y="%d" font-family="sans-serif" font-size="13"><tspan font-weight="700">%s:</tspan> %s</text>`+"\n",
			tooltipPadding, y, escapeXML(l.Label), escapeXML(l.Value))
	}
	buf.WriteString("  </g>\n")
}

func renderTooltipScript(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "  <style>%s\n  </style>\n", tooltipCSS)
	fmt.Fprintf(buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", tooltipJS)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
