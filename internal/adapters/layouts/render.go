package layouts

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html/template"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"cultureplan/internal/composition"
	"cultureplan/internal/core"
	"cultureplan/internal/layout"
)

// Format is an artifact rendering of a plan.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPNG  Format = "png"
)

// DefaultFormats are rendered when a request names none.
var DefaultFormats = []Format{FormatJSON, FormatCSV}

// ParseFormats splits a comma separated list such as "json,png".
func ParseFormats(list string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(list, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		if _, ok := contentTypes[f]; !ok {
			return nil, fmt.Errorf("unsupported export format %q", part)
		}
		out = append(out, f)
	}
	return out, nil
}

var contentTypes = map[Format]string{
	FormatJSON: "application/json",
	FormatCSV:  "text/csv",
	FormatHTML: "text/html; charset=utf-8",
	FormatPNG:  "image/png",
}

// file is one rendered artifact before it is stored. Plate is -1 for
// artifacts covering the whole plan.
type file struct {
	name    string
	format  Format
	plate   int
	payload []byte
}

func plateName(index int, ext string) string {
	return fmt.Sprintf("plate-%02d.%s", index+1, ext)
}

func render(format Format, plan core.Plan) ([]file, error) {
	switch format {
	case FormatJSON:
		payload, err := renderJSON(plan)
		if err != nil {
			return nil, err
		}
		return []file{{name: "layout.json", format: format, plate: -1, payload: payload}}, nil
	case FormatCSV:
		out := make([]file, 0, len(plan.Plates))
		for _, plate := range plan.Plates {
			payload, err := renderCSV(plate)
			if err != nil {
				return nil, err
			}
			out = append(out, file{name: plateName(plate.Index, "csv"), format: format, plate: plate.Index, payload: payload})
		}
		return out, nil
	case FormatHTML:
		payload, err := renderHTML(plan)
		if err != nil {
			return nil, err
		}
		return []file{{name: "layout.html", format: format, plate: -1, payload: payload}}, nil
	case FormatPNG:
		out := make([]file, 0, len(plan.Plates))
		for _, plate := range plan.Plates {
			payload, err := renderPNG(plate)
			if err != nil {
				return nil, err
			}
			out = append(out, file{name: plateName(plate.Index, "png"), format: format, plate: plate.Index, payload: payload})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

type wellDoc struct {
	Well        string                  `json:"well"`
	Group       int                     `json:"group"`
	Replicate   int                     `json:"replicate"`
	Control     bool                    `json:"control,omitempty"`
	Composition composition.Composition `json:"composition"`
}

type plateDoc struct {
	Index int       `json:"index"`
	Rows  int       `json:"rows"`
	Cols  int       `json:"columns"`
	Wells []wellDoc `json:"wells"`
}

type planDoc struct {
	Container string         `json:"container"`
	Volume    string         `json:"culture_volume"`
	Plates    []plateDoc     `json:"plates"`
	Materials core.Materials `json:"materials"`
}

func renderJSON(plan core.Plan) ([]byte, error) {
	doc := planDoc{Container: plan.Container.Name, Volume: plan.Volume.String(), Materials: plan.Materials()}
	for _, plate := range plan.Plates {
		pd := plateDoc{Index: plate.Index, Rows: plate.Rows, Cols: plate.Columns, Wells: []wellDoc{}}
		eachWell(plate, func(r, c int, cell layout.Cell) {
			pd.Wells = append(pd.Wells, wellDoc{
				Well:        layout.Coordinate(r, c),
				Group:       cell.Group,
				Replicate:   cell.Replicate,
				Control:     cell.Control,
				Composition: cell.Culture.Composition(),
			})
		})
		doc.Plates = append(doc.Plates, pd)
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return payload, nil
}

// eachWell visits filled wells row-major.
func eachWell(plate layout.PlateMatrix, fn func(r, c int, cell layout.Cell)) {
	for r, row := range plate.Cells {
		for c, cell := range row {
			if !cell.Empty() {
				fn(r, c, cell)
			}
		}
	}
}

var csvHeader = []string{"plate", "well", "strain", "group", "replicate", "control", "media", "inducers", "antibiotics", "culture_volume"}

func renderCSV(plate layout.PlateMatrix) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	labels := layout.Coordinates(layout.Shape{Rows: plate.Rows, Columns: plate.Columns})
	var werr error
	eachWell(plate, func(r, c int, cell layout.Cell) {
		if werr != nil {
			return
		}
		culture := cell.Culture
		werr = w.Write([]string{
			strconv.Itoa(plate.Index + 1),
			labels[r][c],
			names(culture.Of(composition.KindStrain)),
			strconv.Itoa(cell.Group),
			strconv.Itoa(cell.Replicate + 1),
			strconv.FormatBool(cell.Control),
			names(culture.Of(composition.KindMedia)),
			dosed(culture.Of(composition.KindInducer)),
			dosed(culture.Of(composition.KindAntibiotic)),
			culture.Volume.String(),
		})
	})
	if werr != nil {
		return nil, werr
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func names(components []composition.Component) string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.Name()
	}
	return strings.Join(out, ";")
}

// dosed renders "name=final" pairs; components without a final
// concentration render by name only.
func dosed(components []composition.Component) string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.Name()
		if c.FinalConcentration != nil {
			out[i] += "=" + c.FinalConcentration.String()
		}
	}
	return strings.Join(out, ";")
}

var htmlLayout = template.Must(template.New("layout").Funcs(template.FuncMap{
	"join":   func(s []string) string { return strings.Join(s, " ") },
	"number": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>
{{range .Plates}}<h2>Plate {{.Number}}</h2>
<table border="1"><thead><tr><th></th>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead><tbody>
{{range .Rows}}<tr><th>{{.Label}}</th>{{range .Cells}}<td{{if .Control}} class="control"{{end}}>{{.Text}}</td>{{end}}</tr>
{{end}}</tbody></table>
{{end}}{{with .Materials}}<h2>Materials</h2>
<table border="1"><thead><tr><th>Reagent</th><th>Item</th><th>Volume</th><th>Prepare</th></tr></thead><tbody>
{{range .Reagents}}<tr><td>{{.Sample}}</td><td>{{.ItemID}}{{with .Label}} ({{.}}){{end}}</td><td>{{.Volume}}</td><td>{{.Prepare}}</td></tr>
{{end}}</tbody></table>
<table border="1"><thead><tr><th>Plate</th><th>Strain</th><th>Wells</th><th>Resuspend (mL)</th></tr></thead><tbody>
{{range .Inoculations}}<tr><td>{{number .Plate}}</td><td>{{.Strain}}</td><td>{{join .Wells}}</td><td>{{.ResuspensionML}}</td></tr>
{{end}}</tbody></table>
{{end}}</body></html>
`))

type htmlCell struct {
	Text    string
	Control bool
}

type htmlRow struct {
	Label string
	Cells []htmlCell
}

type htmlPlate struct {
	Number  int
	Columns []int
	Rows    []htmlRow
}

func renderHTML(plan core.Plan) ([]byte, error) {
	data := struct {
		Title     string
		Plates    []htmlPlate
		Materials core.Materials
	}{Title: plan.Container.Name + " layout", Materials: plan.Materials()}
	for _, plate := range plan.Plates {
		hp := htmlPlate{Number: plate.Index + 1}
		for c := 0; c < plate.Columns; c++ {
			hp.Columns = append(hp.Columns, c+1)
		}
		for r, row := range plate.Cells {
			hr := htmlRow{Label: strings.TrimSuffix(layout.Coordinate(r, 0), "1")}
			for _, cell := range row {
				hc := htmlCell{Control: cell.Control}
				if !cell.Empty() {
					hc.Text = wellText(cell)
				}
				hr.Cells = append(hr.Cells, hc)
			}
			hp.Rows = append(hp.Rows, hr)
		}
		data.Plates = append(data.Plates, hp)
	}
	buf := &bytes.Buffer{}
	if err := htmlLayout.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func wellText(cell layout.Cell) string {
	text := names(cell.Culture.Of(composition.KindStrain))
	if inducers := dosed(cell.Culture.Of(composition.KindInducer)); inducers != "" {
		text += " " + inducers
	}
	return text
}

// Well geometry of the PNG plate map, in pixels.
const (
	wellSize = 48
	margin   = 24
)

var (
	controlBorder = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	emptyWell     = color.RGBA{R: 235, G: 235, B: 235, A: 255}
	labelInk      = image.Black
)

// strainColor picks a stable pastel colour for a strain name.
func strainColor(name string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	v := h.Sum32()
	return color.RGBA{R: 120 + uint8(v%120), G: 120 + uint8((v>>8)%120), B: 120 + uint8((v>>16)%120), A: 255}
}

func renderPNG(plate layout.PlateMatrix) ([]byte, error) {
	width := margin + plate.Columns*wellSize + 1
	height := margin + plate.Rows*wellSize + 1
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	drawer := &font.Drawer{Dst: img, Src: labelInk, Face: basicfont.Face7x13}
	label := func(x, y int, s string) {
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(s)
	}
	for c := 0; c < plate.Columns; c++ {
		label(margin+c*wellSize+wellSize/2-4, margin-8, strconv.Itoa(c+1))
	}
	for r := 0; r < plate.Rows; r++ {
		label(6, margin+r*wellSize+wellSize/2+4, strings.TrimSuffix(layout.Coordinate(r, 0), "1"))
	}

	for r, row := range plate.Cells {
		for c, cell := range row {
			x0 := margin + c*wellSize
			y0 := margin + r*wellSize
			rect := image.Rect(x0+1, y0+1, x0+wellSize, y0+wellSize)
			fill := emptyWell
			if !cell.Empty() {
				fill = strainColor(names(cell.Culture.Of(composition.KindStrain)))
			}
			draw.Draw(img, rect, &image.Uniform{C: fill}, image.Point{}, draw.Src)
			if cell.Control && !cell.Empty() {
				outline(img, rect, controlBorder)
			}
			if !cell.Empty() {
				label(x0+4, y0+wellSize/2+4, "G"+strconv.Itoa(cell.Group))
			}
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func outline(img draw.Image, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}
