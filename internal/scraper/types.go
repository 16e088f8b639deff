package scraper

// SaleMarker is the transaction-type literal of a completed sale
const SaleMarker = "صفقة"

// CardShape identifies the text layout of a result card
type CardShape int

const (
	ShapeUnknown CardShape = iota
	// ShapeBasic is the 16-line layout without a category
	ShapeBasic
	// ShapeCategorized is the 17-line layout with a category after the district
	ShapeCategorized
)

// ShapeFor dispatches on the number of non-empty lines of a card
func ShapeFor(lines int) CardShape {
	switch lines {
	case 16:
		return ShapeBasic
	case 17:
		return ShapeCategorized
	default:
		return ShapeUnknown
	}
}

func (s CardShape) String() string {
	switch s {
	case ShapeBasic:
		return "basic"
	case ShapeCategorized:
		return "categorized"
	default:
		return "unknown"
	}
}

// fieldIndex maps record fields to line positions. -1 means the shape has no such field.
type fieldIndex struct {
	district        int
	category        int
	transactionType int
	price           int
	meterPrice      int
	date            int
	area            int
}

var fieldTables = map[CardShape]fieldIndex{
	ShapeBasic: {
		district:        0,
		category:        -1,
		transactionType: 2,
		price:           8,
		meterPrice:      11,
		date:            13,
		area:            15,
	},
	ShapeCategorized: {
		district:        0,
		category:        1,
		transactionType: 3,
		price:           9,
		meterPrice:      12,
		date:            14,
		area:            16,
	},
}

// Record is one completed sale transaction
type Record struct {
	District        string  `json:"DISTRICT"`
	Category        string  `json:"Category,omitempty"`
	TransactionType string  `json:"transaction_type"`
	Price           string  `json:"price"`
	MeterPrice      string  `json:"meter_price"`
	Date            string  `json:"date"`
	Area            string  `json:"area"`
	Quarter         *string `json:"quarter"`

	Shape CardShape `json:"-"`
}

// Categorized reports whether the record came from a categorized card
func (r Record) Categorized() bool {
	return r.Shape == ShapeCategorized
}

// SkipReason explains why a card produced no record
type SkipReason string

const (
	// Accepted means the card produced a record
	Accepted         SkipReason = ""
	SkipEmpty        SkipReason = "empty_card"
	SkipUnknownShape SkipReason = "unknown_shape"
	SkipNotSale      SkipReason = "not_a_sale"
)

// Batch is the output of one card extraction pass
type Batch struct {
	Uncategorized []Record
	Categorized   []Record

	// Cards is the number of card containers found on the page
	Cards int
	// Skipped counts cards dropped by policy (shape or transaction type)
	Skipped int
	// Failed counts cards that could not be read
	Failed int
}

// Records returns the number of records in the batch
func (b Batch) Records() int {
	return len(b.Uncategorized) + len(b.Categorized)
}
