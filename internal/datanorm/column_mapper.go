package datanorm

import (
	"regexp"
	"strings"
)

// CanonicalField is a normalized field name used across all report exports.
type CanonicalField string

const (
	FieldSearchTerm  CanonicalField = "search_term"
	FieldImpressions CanonicalField = "impressions"
	FieldClicks      CanonicalField = "clicks"
	FieldSpend       CanonicalField = "spend"
	FieldSales       CanonicalField = "sales"
	FieldOrders      CanonicalField = "orders"
	FieldCampaign    CanonicalField = "campaign"
	FieldAdGroup     CanonicalField = "ad_group"
	FieldTargeting   CanonicalField = "targeting"
	FieldMatchType   CanonicalField = "match_type"
)

// columnAliases maps normalized header names to canonical fields. Amazon
// Sponsored Products console exports are covered in English and Chinese.
// Derived columns (ACOS, CTR, CPC, conversion rate) are recomputed and
// therefore not mapped.
var columnAliases = map[string]CanonicalField{
	// Search term
	"customer search term": FieldSearchTerm,
	"search term":          FieldSearchTerm,
	"search_term":          FieldSearchTerm,
	"searchterm":           FieldSearchTerm,
	"search query":         FieldSearchTerm,
	"query":                FieldSearchTerm,
	"客户搜索词":                FieldSearchTerm,
	"用户搜索词":                FieldSearchTerm,
	"搜索词":                  FieldSearchTerm,

	// Impressions
	"impressions": FieldImpressions,
	"impr":        FieldImpressions,
	"impr.":       FieldImpressions,
	"展示量":         FieldImpressions,
	"曝光量":         FieldImpressions,
	"曝光":          FieldImpressions,

	// Clicks
	"clicks": FieldClicks,
	"点击量":    FieldClicks,
	"点击次数":   FieldClicks,
	"点击":     FieldClicks,

	// Spend
	"spend":       FieldSpend,
	"cost":        FieldSpend,
	"total spend": FieldSpend,
	"花费":          FieldSpend,
	"支出":          FieldSpend,
	"广告花费":        FieldSpend,

	// Sales
	"7 day total sales":  FieldSales,
	"14 day total sales": FieldSales,
	"total sales":        FieldSales,
	"sales":              FieldSales,
	"7天总销售额":             FieldSales,
	"14天总销售额":            FieldSales,
	"总销售额":               FieldSales,
	"销售额":                FieldSales,

	// Orders
	"7 day total orders":  FieldOrders,
	"14 day total orders": FieldOrders,
	"total orders":        FieldOrders,
	"orders":              FieldOrders,
	"units ordered":       FieldOrders,
	"7天总订单数":              FieldOrders,
	"14天总订单数":             FieldOrders,
	"订单数":                 FieldOrders,
	"订单量":                 FieldOrders,

	// Campaign / ad group
	"campaign name": FieldCampaign,
	"campaign":      FieldCampaign,
	"广告活动名称":        FieldCampaign,
	"广告活动":          FieldCampaign,
	"ad group name": FieldAdGroup,
	"ad group":      FieldAdGroup,
	"广告组名称":         FieldAdGroup,
	"广告组":           FieldAdGroup,

	// Targeting
	"targeting":  FieldTargeting,
	"keyword":    FieldTargeting,
	"投放":         FieldTargeting,
	"关键词":        FieldTargeting,
	"match type": FieldMatchType,
	"匹配类型":       FieldMatchType,
}

// unitSuffix matches trailing unit annotations such as "($)", "(#)" or "（￥）".
var unitSuffix = regexp.MustCompile(`\s*[(（][^)）]*[)）]\s*$`)

// NormalizeHeader lower-cases a raw header cell, strips quotes, unit
// suffixes and repeated whitespace.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.Trim(strings.TrimSpace(h), "\"'")
	h = unitSuffix.ReplaceAllString(h, "")
	return strings.Join(strings.Fields(strings.ToLower(h)), " ")
}

// ColumnMapping holds the resolved mapping from CSV column indices to canonical fields.
type ColumnMapping struct {
	SearchTermIdx int
	FieldMap      map[int]CanonicalField // column index -> canonical field
	RawNames      []string               // original header names
}

// Has reports whether some column maps to f.
func (m *ColumnMapping) Has(f CanonicalField) bool {
	for _, mapped := range m.FieldMap {
		if mapped == f {
			return true
		}
	}
	return false
}

// MapColumns takes a raw CSV header row and returns a resolved mapping.
// When two columns resolve to the same field the leftmost wins.
// Returns nil if no search-term column is found.
func MapColumns(header []string) *ColumnMapping {
	m := &ColumnMapping{
		SearchTermIdx: -1,
		FieldMap:      make(map[int]CanonicalField, len(header)),
		RawNames:      header,
	}

	seen := make(map[CanonicalField]bool, len(header))
	for i, h := range header {
		field, ok := columnAliases[NormalizeHeader(h)]
		if !ok || seen[field] {
			continue
		}
		seen[field] = true
		m.FieldMap[i] = field
		if field == FieldSearchTerm {
			m.SearchTermIdx = i
		}
	}

	// Fallback: any header mentioning a search term if no exact match
	if m.SearchTermIdx < 0 {
		for i, h := range header {
			n := NormalizeHeader(h)
			if strings.Contains(n, "search term") || strings.Contains(n, "搜索词") {
				m.FieldMap[i] = FieldSearchTerm
				m.SearchTermIdx = i
				break
			}
		}
	}

	if m.SearchTermIdx < 0 {
		return nil
	}
	return m
}
