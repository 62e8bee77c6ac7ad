package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
)

type pdfColumn struct {
	title string
	width float64
}

func buildPDF(sh *sheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Tally Sheet", false)
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 16)
	pdf.AliasNbPages("")
	// базовые шрифты в cp1252, остальное заменяется
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	cols := []pdfColumn{{"#", 8}, {"TRUCKS", 30}, {"INITIAL WEIGHING, MT", 28}}
	if sh.includeTimes {
		cols = append(cols, pdfColumn{"DATE & TIME", 30})
	}
	cols = append(cols, pdfColumn{"FINAL WEIGHING, MT", 28})
	if sh.includeTimes {
		cols = append(cols, pdfColumn{"DATE & TIME", 30})
	}
	cols = append(cols, pdfColumn{"NET, MT", 28})
	if !sh.includeTimes {
		// без колонок времени растягиваем таблицу на ширину страницы
		for i := range cols[1:] {
			cols[i+1].width += 15
		}
	}

	header := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(219, 229, 241)
		for _, c := range cols {
			pdf.CellFormat(c.width, 7, c.title, "B", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, "TALLY SHEET", "", 1, "L", false, 0, "")
	labelled := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(24, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	labelled("Vessel:", orDash(sh.inspection.Vessel))
	labelled("Port:", orDash(sh.inspection.Place))
	if sh.inspection.DeclaredTotalWeight != nil {
		labelled("B/L figure:", fmtWeight(sh.inspection.DeclaredTotalWeight)+" mt")
	}
	pdf.Ln(4)

	header()
	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range sh.rows {
		if pdf.GetY()+6 > pageH-bottom-4 {
			pdf.AddPage()
			header()
		}
		cells := []string{fmt.Sprint(r.serial), tr(r.plate), fmtWeight(r.initial)}
		if sh.includeTimes {
			cells = append(cells, fmtLocal(r.initialLocal))
		}
		cells = append(cells, fmtWeight(r.final))
		if sh.includeTimes {
			cells = append(cells, fmtLocal(r.finalLocal))
		}
		net := r.net
		cells = append(cells, fmtWeight(&net))
		for i, c := range cells {
			pdf.CellFormat(cols[i].width, 6, c, "B", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Trucks weight control figure: %s mt", sh.summary.WeighedTotalWeight.StringFixed(3)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if sh.inspection.DeclaredTotalWeight != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Difference: %s mt or %s %%",
			sh.summary.DifferenceWeight.StringFixed(3), sh.summary.DifferencePercent.StringFixed(3)), "", 1, "L", false, 0, "")
	}
	if p := sh.period; p != nil {
		pdf.CellFormat(0, 6, fmt.Sprintf("Period %s - %s: %d trucks, %s mt",
			fmtLocal(p.from), fmtLocal(p.to), p.stats.Count, p.stats.NetWeight.StringFixed(3)), "", 1, "L", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, errors.Wrap(err, "pdf output")
	}
	return out.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
