package fieldapi

// MarketPrice is an indicative price for a crop in a country.
type MarketPrice struct {
	Price       float64 `json:"price"` // USD/ton
	Volatility  float64 `json:"volatility"`
	ExportRatio float64 `json:"export_ratio"`
}

// DefaultMarketPrice is used for countries or crops not in the table.
var DefaultMarketPrice = MarketPrice{Price: 250, Volatility: 0.10, ExportRatio: 0.20}

var marketPrices = map[string]map[string]MarketPrice{
	"India": {
		"wheat": {Price: 230, Volatility: 0.12, ExportRatio: 0.25},
		"rice":  {Price: 310, Volatility: 0.15, ExportRatio: 0.3},
	},
	"Australia": {
		"wheat": {Price: 280, Volatility: 0.08, ExportRatio: 0.6},
		"rice":  {Price: 350, Volatility: 0.18, ExportRatio: 0.2},
	},
}

// LookupMarketPrice returns the simulated market data for crop in country.
func LookupMarketPrice(crop, country string) MarketPrice {
	if p, ok := marketPrices[country][crop]; ok {
		return p
	}
	return DefaultMarketPrice
}
