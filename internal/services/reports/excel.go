package reports

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Tally Sheet"

// buildWorkbook: заголовок, шапка таблицы, строки, итог TOTAL с формулой SUM
// по колонке нетто.
func buildWorkbook(sh *sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, errors.Wrap(err, "excel sheet")
	}

	headers := []string{"#", "TRUCKS", "INITIAL WEIGHT, MT"}
	if sh.includeTimes {
		headers = append(headers, "TIME (INITIAL)")
	}
	headers = append(headers, "FINAL WEIGHT, MT")
	if sh.includeTimes {
		headers = append(headers, "TIME (FINAL)")
	}
	headers = append(headers, "NET, MT")
	cols := len(headers)

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	w := &cellWriter{f: f}
	w.set(1, 1, "TALLY SHEET")
	w.merge(1, 1, cols, 1)
	w.style(1, 1, cols, 1, st.title)

	const headerRow = 3
	for i, h := range headers {
		w.set(i+1, headerRow, h)
	}
	w.style(1, headerRow, cols, headerRow, st.header)

	row := headerRow + 1
	dataStart := row
	for _, r := range sh.rows {
		col := 1
		w.set(col, row, r.serial)
		col++
		w.set(col, row, r.plate)
		col++
		w.weight(col, row, r.initial, st.weight)
		col++
		if sh.includeTimes {
			w.localTime(col, row, r.initialLocal)
			col++
		}
		w.weight(col, row, r.final, st.weight)
		col++
		if sh.includeTimes {
			w.localTime(col, row, r.finalLocal)
			col++
		}
		net := r.net
		w.weight(col, row, &net, st.weight)
		row++
	}

	w.set(1, row, "TOTAL, MT")
	w.merge(1, row, cols-1, row)
	w.style(1, row, cols-1, row, st.total)
	if row > dataStart {
		from := w.name(cols, dataStart)
		to := w.name(cols, row-1)
		w.formula(cols, row, fmt.Sprintf("SUM(%s:%s)", from, to))
	}
	w.style(cols, row, cols, row, st.totalWeight)

	w.width("A", 5)
	w.width("B", 14)
	for c := 3; c <= cols; c++ {
		name, _ := excelize.ColumnNumberToName(c)
		w.width(name, 18)
	}
	if w.err == nil {
		w.err = f.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      headerRow,
			TopLeftCell: w.name(1, headerRow+1),
			ActivePane:  "bottomLeft",
		})
	}
	if w.err != nil {
		return nil, errors.Wrap(w.err, "excel write")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "excel save")
	}
	return buf.Bytes(), nil
}

type styles struct {
	title, header, weight, total, totalWeight int
}

func newStyles(f *excelize.File) (styles, error) {
	weightFmt := "0.000"
	var st styles
	var err error
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.header, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DBE5F1"}},
			Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
		}},
		{&st.weight, &excelize.Style{CustomNumFmt: &weightFmt}},
		{&st.total, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "right"},
			Border:    []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
		}},
		{&st.totalWeight, &excelize.Style{
			Font:         &excelize.Font{Bold: true},
			CustomNumFmt: &weightFmt,
			Border:       []excelize.Border{{Type: "top", Color: "000000", Style: 1}},
		}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return styles{}, errors.Wrap(err, "excel style")
		}
	}
	return st, nil
}

// cellWriter запоминает первую ошибку, чтобы не проверять каждый вызов.
type cellWriter struct {
	f   *excelize.File
	err error
}

func (w *cellWriter) name(col, row int) string {
	n, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && w.err == nil {
		w.err = err
	}
	return n
}

func (w *cellWriter) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(sheetName, w.name(col, row), v)
}

func (w *cellWriter) weight(col, row int, d *decimal.Decimal, style int) {
	if w.err != nil {
		return
	}
	cell := w.name(col, row)
	if d != nil {
		if w.err = w.f.SetCellValue(sheetName, cell, d.InexactFloat64()); w.err != nil {
			return
		}
	}
	w.err = w.f.SetCellStyle(sheetName, cell, cell, style)
}

// localTime пишет время строкой: пояс уже учтён, Excel его не знает.
func (w *cellWriter) localTime(col, row int, t *time.Time) {
	if t == nil {
		return
	}
	w.set(col, row, fmtLocal(t))
}

func (w *cellWriter) formula(col, row int, formula string) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellFormula(sheetName, w.name(col, row), formula)
}

func (w *cellWriter) merge(c1, r1, c2, r2 int) {
	if w.err != nil || (c1 == c2 && r1 == r2) {
		return
	}
	w.err = w.f.MergeCell(sheetName, w.name(c1, r1), w.name(c2, r2))
}

func (w *cellWriter) style(c1, r1, c2, r2, style int) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellStyle(sheetName, w.name(c1, r1), w.name(c2, r2), style)
}

func (w *cellWriter) width(col string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(sheetName, col, col, width)
}
