package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Generation temperatures per analysis.
const (
	cropTemperature   = 0.4
	carbonTemperature = 0.3
	energyTemperature = 0.4
	farmTemperature   = 0.5
	soilTemperature   = 0.3
)

// expertPrompt frames an analysis request for the model.
func expertPrompt(body string) string {
	return `As an agricultural expert with knowledge of sustainable farming practices,
soil science, crop management, and environmental impact assessment,
please provide detailed information on the following:

` + body + `

Include specific, actionable recommendations that are practical for farmers to implement.`
}

func orText(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orNumber(v float64, def string) string {
	if v == 0 {
		return def
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orList(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

func cropPrompt(f FarmData, c *Conditions) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Based on the following soil and climate conditions, recommend suitable crops:
- Soil type: %s
- Soil pH: %s
- Annual rainfall: %s
- Temperature range: %s
- Growing season: %s
- Region: %s`,
		orText(f.SoilType, "Unknown"),
		orNumber(f.SoilPH, "Unknown"),
		orText(f.Rainfall, "Unknown"),
		orText(f.TemperatureRange, "Unknown"),
		orText(f.GrowingSeason, "Unknown"),
		orText(f.Location, "Unknown"),
	)

	if c != nil {
		switch {
		case c.CustomSoil:
			fmt.Fprintf(&b, "\n- Farmer's soil sample: pH %s, nitrogen %s, phosphorus %s, potassium %s, organic matter %s%%, texture %s",
				orNumber(f.Soil.PH, "Unknown"), orNumber(f.Soil.Nitrogen, "Unknown"),
				orNumber(f.Soil.Phosphorus, "Unknown"), orNumber(f.Soil.Potassium, "Unknown"),
				orNumber(f.Soil.OrganicMatter, "Unknown"), orText(f.Soil.Texture, "Unknown"))
		case c.Soil != nil:
			fmt.Fprintf(&b, "\n- Measured topsoil pH: %s, nitrogen: %s",
				orNumber(c.Soil.PH, "Unknown"), orNumber(c.Soil.Nitrogen, "Unknown"))
		}
		if c.Weather != nil {
			fmt.Fprintf(&b, "\n- Current weather: %s°C, humidity %s%%, wind %s km/h",
				orNumber(c.Weather.Temperature, "0"), orNumber(c.Weather.Humidity, "0"), orNumber(c.Weather.WindSpeed, "0"))
		}
		if len(c.Market) > 0 {
			b.WriteString("\n- Market prices (USD/ton):")
			crops := lo.Keys(c.Market)
			sort.Strings(crops)
			for _, crop := range crops {
				p := c.Market[crop]
				fmt.Fprintf(&b, " %s %s (volatility %s, export ratio %s);", crop,
					orNumber(p.Price, "0"), orNumber(p.Volatility, "0"), orNumber(p.ExportRatio, "0"))
			}
		}
	}

	b.WriteString(`

For each recommended crop, please provide:
1. Expected yield per acre
2. Water requirements
3. Fertilizer recommendations
4. Pest management considerations
5. Market potential`)
	return expertPrompt(b.String())
}

func carbonPrompt(f FarmData) string {
	return expertPrompt(fmt.Sprintf(`Calculate the approximate carbon footprint for a farm with the following characteristics:
- Size: %s acres
- Current crops: %s
- Farming practices: %s
- Equipment: %s
- Energy sources: %s

Then, suggest sustainable practices that could:
1. Reduce this carbon footprint
2. Potentially qualify for carbon credits
3. Estimate the potential value of these carbon credits
4. Outline the verification process needed`,
		orNumber(f.Size, "Unknown"),
		orList(f.Crops, "None"),
		orList(f.Practices, "Conventional"),
		orList(f.Equipment, "Standard agricultural equipment"),
		orList(f.EnergySources, "Grid electricity and diesel"),
	))
}

func energyPrompt(f FarmData) string {
	return expertPrompt(fmt.Sprintf(`Generate energy optimization strategies for a farm with:
- Size: %s acres
- Equipment: %s
- Energy sources: %s

Focus on both operational efficiency and potential renewable energy integration.`,
		orNumber(f.Size, "Unknown"),
		orList(f.Equipment, "None"),
		orList(f.EnergySources, "Traditional grid electricity"),
	))
}

func farmPrompt(f FarmData) string {
	return expertPrompt(fmt.Sprintf(`Analyze the following farm data and provide comprehensive recommendations:
- Location: %s
- Size: %s acres
- Current crops: %s
- Soil type: %s
- Climate: %s
- Equipment available: %s
- Goals: %s

Please provide detailed recommendations for:
1. Sustainable farming practices tailored to this specific farm
2. Crop rotation and planting schedules
3. Resource optimization (water, fertilizer, energy)
4. Carbon footprint reduction strategies
5. Potential for carbon credits and how to qualify`,
		orText(f.Location, "Unknown"),
		orNumber(f.Size, "Unknown"),
		orList(f.Crops, "None"),
		orText(f.SoilType, "Unknown"),
		orText(f.Climate, "Unknown"),
		orList(f.Equipment, "Unknown"),
		orList(f.Goals, "Sustainable farming"),
	))
}

func soilPrompt(s SoilSample) string {
	return expertPrompt(fmt.Sprintf(`Analyze the following soil data and provide insights:
- pH level: %s
- Nitrogen content: %s
- Phosphorus content: %s
- Potassium content: %s
- Organic matter: %s
- Texture: %s

Please provide:
1. Soil health assessment
2. Recommended amendments
3. Suitable crops for this soil type
4. Sustainable management practices`,
		orNumber(s.PH, "Unknown"),
		orNumber(s.Nitrogen, "Unknown"),
		orNumber(s.Phosphorus, "Unknown"),
		orNumber(s.Potassium, "Unknown"),
		orNumber(s.OrganicMatter, "Unknown"),
		orText(s.Texture, "Unknown"),
	))
}
