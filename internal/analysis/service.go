// Package analysis runs the farm analyses: deterministic estimates for carbon
// and energy, model-written recommendations, and a record of every result.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/ecofarmcast-go/internal/fieldapi"
	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// ErrUnknownAnalysis is returned by Run for an unrecognised analysis name.
var ErrUnknownAnalysis = errors.New("unknown analysis")

// Crops priced for every crop recommendation.
var pricedCrops = []string{"wheat", "rice", "maize", "barley"}

// FieldData is the part of fieldapi.Client the service needs.
type FieldData interface {
	Soil(ctx context.Context, lat, lon float64) fieldapi.Soil
	Weather(ctx context.Context, lat, lon float64) (fieldapi.Weather, error)
}

// Conditions are the live field data a crop analysis was enriched with.
type Conditions struct {
	Soil       *fieldapi.Soil                  `json:"soil,omitempty"`
	CustomSoil bool                            `json:"custom_soil,omitempty"` // Soil came from the farm's sample
	Weather    *fieldapi.Weather               `json:"weather,omitempty"`
	Market     map[string]fieldapi.MarketPrice `json:"market,omitempty"`
}

// CropResult is the outcome of a crop recommendation.
type CropResult struct {
	Recommendations     string              `json:"recommendations"`
	EnhancedWith        string              `json:"enhanced_with"`
	LocalConsiderations LocalConsiderations `json:"local_considerations"`
	Conditions          *Conditions         `json:"conditions,omitempty"`
}

// CarbonResult is the outcome of a carbon credit analysis.
type CarbonResult struct {
	BaselineFootprint   Footprint   `json:"baseline_footprint"`
	PotentialReductions Reductions  `json:"potential_reductions"`
	CreditValue         CreditValue `json:"credit_value"`
	Recommendations     string      `json:"recommendations"`
}

// EnergyResult is the outcome of an energy optimization.
type EnergyResult struct {
	CurrentUsage           EnergyUsage   `json:"current_usage"`
	OptimizationStrategies string        `json:"optimization_strategies"`
	PotentialSavings       EnergySavings `json:"potential_savings"`
}

// TextResult is a model-written analysis without calculations.
type TextResult struct {
	Text string `json:"text"`
}

// Service runs analyses and records their results.
type Service struct {
	gen   gateway.Generator
	field FieldData // nil disables enrichment
	store *Store
	now   func() time.Time
}

// NewService returns a service; field may be nil to skip enrichment.
func NewService(gen gateway.Generator, field FieldData, store *Store) *Service {
	return &Service{gen: gen, field: field, store: store, now: time.Now}
}

// Run dispatches by analysis name: crops, carbon, energy, farm or soil.
func (s *Service) Run(ctx context.Context, name string, farm FarmData) (any, error) {
	switch name {
	case "crops":
		return s.CropRecommendations(ctx, farm)
	case "carbon":
		return s.CarbonCredits(ctx, farm)
	case "energy":
		return s.EnergyOptimization(ctx, farm)
	case "farm":
		return s.FarmRecommendations(ctx, farm)
	case "soil":
		return s.SoilAnalysis(ctx, farm)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysis, name)
}

// CropRecommendations recommends crops for the farm's conditions. Farms with
// coordinates get live weather folded into the prompt, and live soil data
// unless they carry their own soil sample.
func (s *Service) CropRecommendations(ctx context.Context, farm FarmData) (*CropResult, error) {
	cond := s.conditions(ctx, farm)

	text, err := s.ask(ctx, cropPrompt(farm, cond), cropTemperature)
	if err != nil {
		return nil, fmt.Errorf("crop recommendations: %w", err)
	}
	res := &CropResult{
		Recommendations:     text,
		EnhancedWith:        "Agricultural knowledge database",
		LocalConsiderations: LocalConsiderationsFor(farm),
		Conditions:          cond,
	}
	if err := s.save(ctx, TypeCropRecommendation, farm, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) conditions(ctx context.Context, farm FarmData) *Conditions {
	cond := &Conditions{Market: make(map[string]fieldapi.MarketPrice, len(pricedCrops))}
	for _, crop := range pricedCrops {
		cond.Market[crop] = fieldapi.LookupMarketPrice(crop, farm.Country)
	}
	if farm.Soil.Supplied() {
		// a farmer's own sample replaces the soil lookup
		cond.Soil = &fieldapi.Soil{
			PH:           farm.Soil.PH,
			Nitrogen:     farm.Soil.Nitrogen,
			Phosphorus:   farm.Soil.Phosphorus,
			Potassium:    farm.Soil.Potassium,
			QualityIndex: fieldapi.DefaultSoil.QualityIndex,
		}
		cond.CustomSoil = true
	}
	if s.field == nil || !farm.HasLocation() {
		return cond
	}

	lat, lon := *farm.Latitude, *farm.Longitude
	var (
		soil    fieldapi.Soil
		weather fieldapi.Weather
	)
	var g errgroup.Group
	if !cond.CustomSoil {
		g.Go(func() error {
			soil = s.field.Soil(ctx, lat, lon)
			return nil
		})
	}
	g.Go(func() error {
		var err error
		weather, err = s.field.Weather(ctx, lat, lon)
		return err
	})
	err := g.Wait()
	if !cond.CustomSoil {
		cond.Soil = &soil
	}
	if err != nil {
		// the analysis still runs on the farm's own data
		logger.L.Warn("weather lookup failed", "farm", farm.ID, "error", err)
		return cond
	}
	cond.Weather = &weather
	return cond
}

// CarbonCredits estimates the farm's footprint, the reduction its practices
// allow and what that is worth in credits.
func (s *Service) CarbonCredits(ctx context.Context, farm FarmData) (*CarbonResult, error) {
	text, err := s.ask(ctx, carbonPrompt(farm), carbonTemperature)
	if err != nil {
		return nil, fmt.Errorf("carbon credits: %w", err)
	}
	reductions := PotentialReductions(farm)
	res := &CarbonResult{
		BaselineFootprint:   BaselineFootprint(farm),
		PotentialReductions: reductions,
		CreditValue:         CreditValueOf(reductions),
		Recommendations:     text,
	}
	if err := s.save(ctx, TypeCarbonCredits, farm, res); err != nil {
		return nil, err
	}
	return res, nil
}

// EnergyOptimization estimates usage and savings and asks for strategies.
func (s *Service) EnergyOptimization(ctx context.Context, farm FarmData) (*EnergyResult, error) {
	usage := CurrentEnergyUsage(farm)
	text, err := s.ask(ctx, energyPrompt(farm), energyTemperature)
	if err != nil {
		return nil, fmt.Errorf("energy optimization: %w", err)
	}
	res := &EnergyResult{
		CurrentUsage:           usage,
		OptimizationStrategies: text,
		PotentialSavings:       PotentialEnergySavings(usage),
	}
	if err := s.save(ctx, TypeEnergyOptimization, farm, res); err != nil {
		return nil, err
	}
	return res, nil
}

// FarmRecommendations asks for whole-farm sustainability advice.
func (s *Service) FarmRecommendations(ctx context.Context, farm FarmData) (*TextResult, error) {
	text, err := s.ask(ctx, farmPrompt(farm), farmTemperature)
	if err != nil {
		return nil, fmt.Errorf("farm recommendations: %w", err)
	}
	res := &TextResult{Text: text}
	if err := s.save(ctx, TypeFarmRecommendation, farm, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SoilAnalysis interprets farm.Soil. Missing pH and nitrogen are taken from
// the soil service when the farm has coordinates.
func (s *Service) SoilAnalysis(ctx context.Context, farm FarmData) (*TextResult, error) {
	sample := farm.Soil
	if (sample.PH == 0 || sample.Nitrogen == 0) && s.field != nil && farm.HasLocation() {
		measured := s.field.Soil(ctx, *farm.Latitude, *farm.Longitude)
		if sample.PH == 0 {
			sample.PH = measured.PH
		}
		if sample.Nitrogen == 0 {
			sample.Nitrogen = measured.Nitrogen
		}
	}

	text, err := s.ask(ctx, soilPrompt(sample), soilTemperature)
	if err != nil {
		return nil, fmt.Errorf("soil analysis: %w", err)
	}
	res := &TextResult{Text: text}
	if err := s.save(ctx, TypeSoilAnalysis, farm, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Previous lists earlier analyses of a farm, newest first.
func (s *Service) Previous(ctx context.Context, farmID string, typ Type, limit int) ([]Record, error) {
	return s.store.List(ctx, farmID, typ, limit)
}

func (s *Service) ask(ctx context.Context, prompt string, temperature float32) (string, error) {
	reply, err := s.gen.Generate(ctx, prompt, gateway.Options{Temperature: temperature})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (s *Service) save(ctx context.Context, typ Type, farm FarmData, result any) error {
	input, err := json.Marshal(farm)
	if err != nil {
		return err
	}
	output, err := json.Marshal(result)
	if err != nil {
		return err
	}
	rec := &Record{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		FarmID:    farm.ID,
		Type:      typ,
		Input:     input,
		Result:    output,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		logger.L.Error("failed to save analysis", "farm", farm.ID, "type", typ, "error", err)
		return err
	}
	logger.L.Info("analysis saved", "farm", farm.ID, "type", typ, "id", rec.ID)
	return nil
}
