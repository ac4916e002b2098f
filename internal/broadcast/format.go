package broadcast

import (
	"fmt"
	"strconv"
	"strings"

	"indexcast/internal/fetcher"
)

// DateLayout renders the trade date in messages.
const DateLayout = "2006/01/02"

// Format holds the naming used in broadcast messages.
type Format struct {
	IndexName    string
	CurrencyUnit string
}

// Message renders p as "<index> latest close: <close> <unit>. (<YYYY/MM/DD>)".
func (f Format) Message(p fetcher.PricePoint) string {
	return fmt.Sprintf("%s latest close: %s %s. (%s)",
		f.IndexName,
		FormatClose(p.Close),
		f.CurrencyUnit,
		p.TradeDate.Format(DateLayout),
	)
}

// FormatClose renders the shortest decimal that round-trips, always with a
// fractional part: 38500.25, 38000.0.
func FormatClose(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
