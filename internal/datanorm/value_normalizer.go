package datanorm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ignite/searchterm-optimizer/internal/domain"
)

var (
	// ErrMissingSearchTerm marks a row whose search-term cell is blank.
	ErrMissingSearchTerm = errors.New("missing search term")
	// ErrBadNumber marks a metric cell that is not a number.
	ErrBadNumber = errors.New("invalid number")
)

var numberReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "", "￥", "",
	",", "", "%", "", " ", "", "\u00a0", "",
)

// numberPlaceholders are cells exports use for "no value".
var numberPlaceholders = map[string]bool{
	"": true, "-": true, "--": true, "—": true, "n/a": true, "na": true, "null": true,
}

// ParseNumber cleans a metric cell: currency symbols, thousands separators,
// percent signs and quotes are dropped. Placeholders parse as 0.
// Accounting negatives like "(12.50)" become 0 since metrics are
// non-negative. ok is false when the cell is not a number.
func ParseNumber(raw string) (float64, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"'")
	if numberPlaceholders[strings.ToLower(s)] {
		return 0, true
	}
	s = strings.ToUpper(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "USD"), "USD")
	s = strings.TrimPrefix(s, "US")
	s = numberReplacer.Replace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		if _, err := strconv.ParseFloat(s[1:len(s)-1], 64); err == nil {
			return 0, true
		}
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 {
		return 0, true
	}
	return v, true
}

// NormalizeRow converts one CSV row into a search-term record.
// Cells past the end of a short row count as empty.
func NormalizeRow(row []string, mapping *ColumnMapping) (domain.SearchTermRecord, error) {
	var (
		term, campaign, adGroup string
		m                       domain.RawMetrics
	)

	for i, field := range mapping.FieldMap {
		if i >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[i])

		var dst *float64
		switch field {
		case FieldSearchTerm:
			term = strings.Join(strings.Fields(val), " ")
			continue
		case FieldCampaign:
			campaign = val
			continue
		case FieldAdGroup:
			adGroup = val
			continue
		case FieldImpressions:
			dst = &m.Impressions
		case FieldClicks:
			dst = &m.Clicks
		case FieldSpend:
			dst = &m.Spend
		case FieldSales:
			dst = &m.Sales
		case FieldOrders:
			dst = &m.Orders
		default:
			continue
		}

		v, ok := ParseNumber(val)
		if !ok {
			return domain.SearchTermRecord{}, fmt.Errorf("%w in column %q: %q", ErrBadNumber, rawName(mapping, i), val)
		}
		*dst = v
	}

	if term == "" {
		return domain.SearchTermRecord{}, ErrMissingSearchTerm
	}
	return domain.NewSearchTermRecord(term, m, campaign, adGroup), nil
}

func rawName(m *ColumnMapping, i int) string {
	if i < len(m.RawNames) {
		return strings.TrimSpace(m.RawNames[i])
	}
	return strconv.Itoa(i)
}
