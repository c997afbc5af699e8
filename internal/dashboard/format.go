package dashboard

import (
	"strconv"
	"strings"

	"github.com/bobmcallan/alpha-matrix/internal/models"
)

// HotRVol is the relative volume at and above which a row is highlighted.
const HotRVol = 150.0

// Row is an instrument prepared for the table.
type Row struct {
	Index      int               `json:"index"`
	Instrument models.Instrument `json:"instrument"`
	Style      models.GradeStyle `json:"style"`
	Price      string            `json:"price"`
	Alpha      string            `json:"alpha"`
	RVol       string            `json:"rvol"`
	Hot        bool              `json:"hot"`
}

// Rows formats a list for display, keeping its order.
func Rows(list []models.Instrument) []Row {
	rows := make([]Row, len(list))
	for i, inst := range list {
		rows[i] = Row{
			Index:      i,
			Instrument: inst,
			Style:      models.StyleFor(inst.GradeScore),
			Price:      FormatPrice(inst.PriceCurr),
			Alpha:      FormatAlpha(inst.Alpha1M),
			RVol:       strconv.FormatFloat(inst.RVol, 'f', -1, 64) + "%",
			Hot:        inst.RVol >= HotRVol,
		}
	}
	return rows
}

// FormatPrice renders a price with thousands separators and at most three
// decimals, trailing zeros trimmed: 35120 -> "35,120", 1234.5 -> "1,234.5".
func FormatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

// FormatAlpha renders the one-month alpha as a signed percentage: "+3.2%".
func FormatAlpha(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64) + "%"
	if v > 0 {
		return "+" + s
	}
	return s
}
