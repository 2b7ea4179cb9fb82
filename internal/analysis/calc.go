package analysis

import (
	"slices"
	"strings"
)

// FarmData describes a farm. It arrives inline with every analysis request.
type FarmData struct {
	ID                   string     `json:"id"`
	Location             string     `json:"location,omitempty"`
	Latitude             *float64   `json:"latitude,omitempty"`
	Longitude            *float64   `json:"longitude,omitempty"`
	Country              string     `json:"country,omitempty"`
	Size                 float64    `json:"size,omitempty"` // acres
	Crops                []string   `json:"crops,omitempty"`
	SoilType             string     `json:"soil_type,omitempty"`
	SoilPH               float64    `json:"soil_ph,omitempty"`
	Climate              string     `json:"climate,omitempty"`
	Rainfall             string     `json:"rainfall,omitempty"`
	TemperatureRange     string     `json:"temperature_range,omitempty"`
	GrowingSeason        string     `json:"growing_season,omitempty"`
	Equipment            []string   `json:"equipment,omitempty"`
	Goals                []string   `json:"goals,omitempty"`
	Practices            []string   `json:"practices,omitempty"`
	EnergySources        []string   `json:"energy_sources,omitempty"`
	SustainablePractices []string   `json:"sustainable_practices,omitempty"`
	Soil                 SoilSample `json:"soil"`
}

// HasLocation reports whether both coordinates are set.
func (f FarmData) HasLocation() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// SoilSample is a lab or field soil measurement.
type SoilSample struct {
	PH            float64 `json:"ph,omitempty"`
	Nitrogen      float64 `json:"nitrogen,omitempty"`
	Phosphorus    float64 `json:"phosphorus,omitempty"`
	Potassium     float64 `json:"potassium,omitempty"`
	OrganicMatter float64 `json:"organic_matter,omitempty"`
	Texture       string  `json:"texture,omitempty"`
}

// Supplied reports whether the farmer provided a sample of their own.
func (s SoilSample) Supplied() bool { return s.PH != 0 || s.Nitrogen != 0 }

// FootprintBreakdown splits a footprint by source, in tons.
type FootprintBreakdown struct {
	Equipment float64 `json:"equipment"`
	Crops     float64 `json:"crops"`
	Baseline  float64 `json:"baseline"`
}

// Footprint is an estimated yearly carbon footprint in tons.
type Footprint struct {
	Total     float64            `json:"total"`
	Breakdown FootprintBreakdown `json:"breakdown"`
}

// Reductions is the emission cut the farm's practices allow.
type Reductions struct {
	Percentage float64 `json:"percentage"`
	Tonnage    float64 `json:"tonnage"`
}

// CreditValue prices a reduction as carbon credits.
type CreditValue struct {
	Tons        float64 `json:"tons"`
	ValuePerTon float64 `json:"value_per_ton"`
	TotalValue  float64 `json:"total_value"`
}

// EnergyBreakdown splits usage by consumer.
type EnergyBreakdown struct {
	Equipment float64 `json:"equipment"`
	PerAcre   float64 `json:"per_acre"`
}

// EnergyUsage is the estimated consumption of a farm.
type EnergyUsage struct {
	Total     float64         `json:"total"`
	Breakdown EnergyBreakdown `json:"breakdown"`
}

// EnergySavings is what optimization could save.
type EnergySavings struct {
	Percentage float64 `json:"percentage"`
	Cost       float64 `json:"cost"`
}

// LocalConsiderations lists regional factors for crop planning.
type LocalConsiderations struct {
	RegionalBestPractices  []string `json:"regional_best_practices"`
	SeasonalConsiderations []string `json:"seasonal_considerations"`
}

// CreditPricePerTon is the carbon credit price in USD per ton of CO2.
const CreditPricePerTon = 15

// EnergyUnitCost is the assumed cost in USD per unit of energy.
const EnergyUnitCost = 0.15

const energySavingsShare = 0.25

var practiceReductions = []struct {
	practice string
	factor   float64
}{
	{"organic", 0.2},
	{"no-till", 0.15},
	{"cover-crops", 0.1},
	{"rotational-grazing", 0.12},
}

// BaselineFootprint scales acreage by the amount of equipment and crops.
func BaselineFootprint(f FarmData) Footprint {
	acres := f.Size
	equipment := float64(len(f.Equipment))
	crops := float64(len(f.Crops))
	return Footprint{
		Total: acres * (1 + equipment*0.1) * (1 + crops*0.05),
		Breakdown: FootprintBreakdown{
			Equipment: acres * equipment * 0.1,
			Crops:     acres * crops * 0.05,
			Baseline:  acres,
		},
	}
}

// PotentialReductions sums the reduction factors of the sustainable
// practices in use.
func PotentialReductions(f FarmData) Reductions {
	var factor float64
	for _, r := range practiceReductions {
		if slices.Contains(f.SustainablePractices, r.practice) {
			factor += r.factor
		}
	}
	return Reductions{
		Percentage: factor * 100,
		Tonnage:    BaselineFootprint(f).Total * factor,
	}
}

// CreditValueOf prices r at CreditPricePerTon.
func CreditValueOf(r Reductions) CreditValue {
	return CreditValue{
		Tons:        r.Tonnage,
		ValuePerTon: CreditPricePerTon,
		TotalValue:  r.Tonnage * CreditPricePerTon,
	}
}

// equipmentFactor rates one piece of equipment. When a name matches several
// kinds, the last one listed wins.
func equipmentFactor(item string) float64 {
	name := strings.ToLower(item)
	factor := 1.0
	if strings.Contains(name, "tractor") {
		factor = 10
	}
	if strings.Contains(name, "irrigation") {
		factor = 15
	}
	if strings.Contains(name, "harvester") {
		factor = 12
	}
	return factor
}

// CurrentEnergyUsage estimates usage from the equipment list and acreage.
func CurrentEnergyUsage(f FarmData) EnergyUsage {
	var sum float64
	for _, e := range f.Equipment {
		sum += equipmentFactor(e)
	}
	total := sum * f.Size * 0.1
	return EnergyUsage{
		Total:     total,
		Breakdown: EnergyBreakdown{Equipment: total, PerAcre: sum * 0.1},
	}
}

// PotentialEnergySavings assumes a 25% cut priced at EnergyUnitCost.
func PotentialEnergySavings(u EnergyUsage) EnergySavings {
	return EnergySavings{
		Percentage: energySavingsShare * 100,
		Cost:       u.Total * energySavingsShare * EnergyUnitCost,
	}
}

// LocalConsiderationsFor returns regional advice for the farm. The advice is
// currently the same for every region.
func LocalConsiderationsFor(FarmData) LocalConsiderations {
	return LocalConsiderations{
		RegionalBestPractices: []string{
			"Consider local water conservation techniques",
			"Implement region-specific pest management strategies",
			"Connect with local agricultural extension services",
		},
		SeasonalConsiderations: []string{
			"Adjust planting schedules based on local climate patterns",
			"Prepare for seasonal weather events common in your region",
		},
	}
}
