package scraper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "sjsage522/dealworker/pkg/errors"
)

const (
	datePickerRoot   = "//div[@class='ant-row ant-row-start ant-row-middle ant-row-rtl datepicker-inputs']"
	datePickerSuffix = "/div[1]/div[1]/div[1]/div[1]/div[1]/span[1]/input[1]"
)

// DatePicker holds the XPaths of the three inputs of one date picker
type DatePicker struct {
	Year  string `yaml:"year"`
	Month string `yaml:"month"`
	Day   string `yaml:"day"`
}

// Selectors is the set of XPaths the pipeline depends on.
// The portal layout changes without notice, so every entry can be overridden from a file.
type Selectors struct {
	From DatePicker `yaml:"from"`
	To   DatePicker `yaml:"to"`

	// LocationSuggestion matches an open autocomplete option
	LocationSuggestion string `yaml:"location_suggestion"`
	MinPrice           string `yaml:"min_price"`

	// Submit lists the search button locators in the order they are tried
	Submit []string `yaml:"submit"`

	// Cards matches one container per result card
	Cards string `yaml:"cards"`
}

// The date inputs are laid out right to left, so div[3] is the year
func datePicker(picker int) DatePicker {
	input := func(pos int) string {
		return fmt.Sprintf("%s/div[%d]/div[2]/div[%d]%s", datePickerRoot, picker, pos, datePickerSuffix)
	}
	return DatePicker{
		Year:  input(3),
		Month: input(2),
		Day:   input(1),
	}
}

// DefaultSelectors returns the selectors for the current portal layout
func DefaultSelectors() Selectors {
	return Selectors{
		From:               datePicker(1),
		To:                 datePicker(2),
		LocationSuggestion: "//div[contains(@class, 'ant-select-dropdown') and not(contains(@class, 'ant-select-dropdown-hidden'))]//div[contains(@class, 'ant-select-item-option')]",
		MinPrice:           "//div[@class='RealestateInfoTransactionFilter']/div[1]/div[4]/div[1]/div[1]/div[1]/div[1]/div[2]/div[1]/div[1]/span[1]/input[1]",
		Submit: []string{
			"//button[@class='ant-btn ant-btn-primary ant-btn-rtl ant-btn-primary ant-btn-primary--success']/span[1]",
			"//button[contains(@class, 'ant-btn-primary')]//span[contains(text(), 'بحث')]/..",
			"//button[contains(@class, 'ant-btn')]//span[contains(text(), 'بحث')]/..",
		},
		Cards: `//ul[@class="ant-list-items"]/a/div[1]`,
	}
}

// LoadSelectors reads a YAML override file on top of the defaults.
// Keys missing from the file keep their default value.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, apperrors.NewConfiguration("failed to read selectors file", err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, apperrors.NewConfiguration("failed to parse selectors file", err)
	}
	if err := sel.Validate(); err != nil {
		return sel, err
	}
	return sel, nil
}

// Validate checks that no selector was overridden with an empty value
func (s Selectors) Validate() error {
	required := map[string]string{
		"from.year":  s.From.Year,
		"from.month": s.From.Month,
		"from.day":   s.From.Day,
		"to.year":    s.To.Year,
		"to.month":   s.To.Month,
		"to.day":     s.To.Day,
		"min_price":  s.MinPrice,
		"cards":      s.Cards,
	}
	for name, value := range required {
		if value == "" {
			return apperrors.NewConfiguration(fmt.Sprintf("selector %s must not be empty", name), nil)
		}
	}
	if len(s.Submit) == 0 {
		return apperrors.NewConfiguration("at least one submit selector is required", nil)
	}
	return nil
}
