package spreadsheet

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var excelEpoch = time.UnixMilli(EXCEL_EPOCH_MS).UTC()

// formatValue renders an evaluated value for display. numbers honor the
// cell format: fixed decimals ("0.00"), grouping ("#,##0"), percent ("0%")
// and dates or times (m, d, y, h, s tokens)
func formatValue(value Primitive, format string) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return formatNumber(v, format)
	case *SpreadsheetError:
		return v.Sentinel()
	default:
		return toString(value)
	}
}

func formatNumber(v float64, format string) string {
	if format == "" {
		v = math.Round(v*1e10) / 1e10
		// negative zero shows as 0
		if v == 0 {
			v = 0
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v == 0 {
		v = 0
	}
	if isDateFormat(format) {
		return formatDate(v, format)
	}

	percent := strings.HasSuffix(format, "%")
	pattern := strings.TrimSuffix(format, "%")
	if percent {
		v *= 100
	}
	decimals := 0
	if i := strings.IndexByte(pattern, '.'); i >= 0 {
		decimals = len(pattern) - i - 1
	}
	text := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(pattern, ",") {
		text = groupThousands(text)
	}
	if percent {
		text += "%"
	}
	return text
}

func groupThousands(text string) string {
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	integer, fraction, hasFraction := strings.Cut(text, ".")
	var b strings.Builder
	for i, ch := range integer {
		if i > 0 && (len(integer)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if hasFraction {
		b.WriteByte('.')
		b.WriteString(fraction)
	}
	return sign + b.String()
}

func isDateFormat(format string) bool {
	lower := strings.ToLower(format)
	return strings.ContainsAny(lower, "dyhs") || strings.Contains(lower, "m/") || strings.Contains(lower, "/m")
}

// dateLayouts maps format tokens to time layout elements, longest first
var dateLayouts = []struct{ token, layout string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"mm", "01"},
	{"m", "1"},
	{"dd", "02"},
	{"d", "2"},
	{"hh", "15"},
	{"ss", "05"},
}

func formatDate(v float64, format string) string {
	t := excelEpoch.Add(time.Duration(math.Round(v*MS_PER_DAY)) * time.Millisecond)
	lower := strings.ToLower(format)
	var layout strings.Builder
	afterHour := false
	for len(lower) > 0 {
		matched := false
		for _, dl := range dateLayouts {
			if !strings.HasPrefix(lower, dl.token) {
				continue
			}
			elem := dl.layout
			// minutes follow hours
			if afterHour && (dl.token == "mm" || dl.token == "m") {
				elem = "04"
			}
			afterHour = dl.token == "hh"
			layout.WriteString(elem)
			lower = lower[len(dl.token):]
			matched = true
			break
		}
		if !matched {
			if lower[0] != ':' {
				afterHour = false
			}
			layout.WriteByte(lower[0])
			lower = lower[1:]
		}
	}
	return t.Format(layout.String())
}
