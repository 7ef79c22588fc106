package badge

import (
	"bytes"
	"text/template"
	"unicode/utf8"

	"github.com/purelind/pycompat-check/internal/status"
)

// SVGContentType is the content type of rendered badges.
const SVGContentType = "image/svg+xml"

var svgColors = map[string]string{
	"green":  "#4c1",
	"yellow": "#dfb317",
	"red":    "#e05d44",
	"blue":   "#007ec6",
	"purple": "#9f9f9f",
	"orange": "#fe7d37",
}

var badgeTmpl = template.Must(template.New("badge").Funcs(template.FuncMap{
	"half": func(n int) int { return n / 2 },
}).Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="20">
<linearGradient id="s" x2="0" y2="100%"><stop offset="0" stop-color="#bbb" stop-opacity=".1"/><stop offset="1" stop-opacity=".1"/></linearGradient>
<clipPath id="r"><rect width="{{.Width}}" height="20" rx="3" fill="#fff"/></clipPath>
<g clip-path="url(#r)">
<rect width="{{.LeftWidth}}" height="20" fill="#555"/>
<rect x="{{.LeftWidth}}" width="{{.RightWidth}}" height="20" fill="{{.Color}}"/>
<rect width="{{.Width}}" height="20" fill="url(#s)"/>
</g>
<g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="11">
<text x="{{half .LeftWidth}}" y="14">{{.Left}}</text>
<text x="{{.RightCenter}}" y="14">{{.Right}}</text>
</g>
</svg>
`))

type badgeData struct {
	Left, Right                  string
	Color                        string
	Width, LeftWidth, RightWidth int
	RightCenter                  int
}

// textWidth approximates the rendered width of s in 11px Verdana.
func textWidth(s string) int {
	return utf8.RuneCountInString(s)*7 + 10
}

// Render draws a two-part badge: left text on grey, the status label on
// its color.
func Render(left string, st status.Status) ([]byte, error) {
	right := st.Label()
	d := badgeData{
		Left:       xmlEscape(left),
		Right:      xmlEscape(right),
		Color:      svgColors[st.Color()],
		LeftWidth:  textWidth(left),
		RightWidth: textWidth(right),
	}
	d.Width = d.LeftWidth + d.RightWidth
	d.RightCenter = d.LeftWidth + d.RightWidth/2

	var buf bytes.Buffer
	if err := badgeTmpl.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	template.HTMLEscape(&buf, []byte(s))
	return buf.String()
}
