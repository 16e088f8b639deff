package scraper

import (
	"fmt"
	"strings"
	"time"

	"sjsage522/dealworker/helpers"
)

// cardDateLayout accepts both "01/01/2022" and "1/1/2022"
const cardDateLayout = "2/1/2006"

// Quarter derives the "Q{YY}{1-4}" label of a DD/MM/YYYY date
func Quarter(date string) (string, bool) {
	t, err := time.Parse(cardDateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("Q%02d%d", t.Year()%100, (int(t.Month())+2)/3), true
}

// NormalizeDistrict strips the city prefix and the separators around the district name
func NormalizeDistrict(s, prefix string) string {
	s = strings.TrimSpace(s)
	if prefix != "" {
		s = strings.TrimPrefix(s, prefix)
		// The portal is inconsistent about the space before the comma
		s = strings.TrimPrefix(s, strings.ReplaceAll(prefix, " ", ""))
	}
	return strings.Trim(s, " \t ,،")
}

// ParseCard maps the text of one card to a record.
// A non-empty SkipReason means the card produced no record.
func ParseCard(text, districtPrefix string) (Record, SkipReason) {
	return ParseSegments(helpers.SplitNonEmptyLines(text), districtPrefix)
}

// ParseSegments maps already split card lines to a record
func ParseSegments(lines []string, districtPrefix string) (Record, SkipReason) {
	if len(lines) == 0 {
		return Record{}, SkipEmpty
	}

	shape := ShapeFor(len(lines))
	idx, ok := fieldTables[shape]
	if !ok {
		return Record{}, SkipUnknownShape
	}

	if lines[idx.transactionType] != SaleMarker {
		return Record{}, SkipNotSale
	}

	rec := Record{
		District:        NormalizeDistrict(lines[idx.district], districtPrefix),
		TransactionType: lines[idx.transactionType],
		Price:           lines[idx.price],
		MeterPrice:      lines[idx.meterPrice],
		Date:            lines[idx.date],
		Area:            lines[idx.area],
		Shape:           shape,
	}
	if idx.category >= 0 {
		rec.Category = lines[idx.category]
	}
	if q, ok := Quarter(rec.Date); ok {
		rec.Quarter = &q
	}
	return rec, Accepted
}
