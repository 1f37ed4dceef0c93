package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// RuntimeConfig is the central configuration for every tunable knob in the
// simulation. Every sub-struct carries defaults so the sim works
// out-of-the-box. Values can be patched at runtime via POST /config; hot keys
// are re-read on the next tick (the paced tick loop reads tickRateMs and
// maxTicks when it starts), cold keys take effect after reinitialize.
type RuntimeConfig struct {
	Simulation    SimulationParams    `mapstructure:"simulation" json:"simulation"`
	Commodity     CommodityParams     `mapstructure:"commodity" json:"commodity"`
	OrderBook     OrderBookParams     `mapstructure:"orderBook" json:"orderBook"`
	AgentCounts   AgentCounts         `mapstructure:"agentCounts" json:"agentCounts"`
	AgentCash     AgentCashParams     `mapstructure:"agentCash" json:"agentCash"`
	AgentGlobal   AgentGlobalParams   `mapstructure:"agentGlobal" json:"agentGlobal"`
	AgentGen      AgentGenParams      `mapstructure:"agentGen" json:"agentGen"`
	MarketMaker   MarketMakerParams   `mapstructure:"marketMaker" json:"marketMaker"`
	SupplyDemand  SupplyDemandParams  `mapstructure:"supplyDemand" json:"supplyDemand"`
	Momentum      MomentumParams      `mapstructure:"momentum" json:"momentum"`
	MeanReversion MeanReversionParams `mapstructure:"meanReversion" json:"meanReversion"`
	Noise         NoiseParams         `mapstructure:"noise" json:"noise"`
	CrossEffects  CrossEffectsParams  `mapstructure:"crossEffects" json:"crossEffects"`
	Inventory     InventoryParams     `mapstructure:"inventory" json:"inventory"`
	Event         EventParams         `mapstructure:"event" json:"event"`
	News          NewsParams          `mapstructure:"news" json:"news"`
	Catalog       []CommoditySpec     `mapstructure:"catalog" json:"catalog"`
	CrossTable    []CrossEffectSpec   `mapstructure:"crossTable" json:"crossTable"`
}

type SimulationParams struct {
	TickRateMs              int    `mapstructure:"tickRateMs" json:"tickRateMs"`
	MaxTicks                int    `mapstructure:"maxTicks" json:"maxTicks"` // 0 = unlimited
	TicksPerDay             int    `mapstructure:"ticksPerDay" json:"ticksPerDay"`
	PopulateTicksPerDay     int    `mapstructure:"populateTicksPerDay" json:"populateTicksPerDay"`
	PopulateFineTicksPerDay int    `mapstructure:"populateFineTicksPerDay" json:"populateFineTicksPerDay"`
	PopulateFineDays        int    `mapstructure:"populateFineDays" json:"populateFineDays"`
	StartDate               string `mapstructure:"startDate" json:"startDate"`
}

type CommodityParams struct {
	CircuitBreakerLimit float64 `mapstructure:"circuitBreakerLimit" json:"circuitBreakerLimit"`
	ImpactDampening     float64 `mapstructure:"impactDampening" json:"impactDampening"`
	PriceFloor          float64 `mapstructure:"priceFloor" json:"priceFloor"`
	SupplyDecayRate     float64 `mapstructure:"supplyDecayRate" json:"supplyDecayRate"`
	DemandDecayRate     float64 `mapstructure:"demandDecayRate" json:"demandDecayRate"`
}

type OrderBookParams struct {
	OrderExpiryMs uint64 `mapstructure:"orderExpiryMs" json:"orderExpiryMs"`
}

type AgentCounts struct {
	SupplyDemand  int `mapstructure:"supplyDemand" json:"supplyDemand"`
	Momentum      int `mapstructure:"momentum" json:"momentum"`
	MeanReversion int `mapstructure:"meanReversion" json:"meanReversion"`
	Noise         int `mapstructure:"noise" json:"noise"`
	MarketMaker   int `mapstructure:"marketMaker" json:"marketMaker"`
	CrossEffects  int `mapstructure:"crossEffects" json:"crossEffects"`
	Inventory     int `mapstructure:"inventory" json:"inventory"`
	Event         int `mapstructure:"event" json:"event"`
}

func (c AgentCounts) Total() int {
	return c.SupplyDemand + c.Momentum + c.MeanReversion + c.Noise +
		c.MarketMaker + c.CrossEffects + c.Inventory + c.Event
}

type AgentCashParams struct {
	MeanCash float64 `mapstructure:"meanCash" json:"meanCash"`
	StdCash  float64 `mapstructure:"stdCash" json:"stdCash"`
}

type AgentGlobalParams struct {
	CapitalFraction      float64 `mapstructure:"capitalFraction" json:"capitalFraction"`
	CashReserve          float64 `mapstructure:"cashReserve" json:"cashReserve"`
	MaxOrderSize         int64   `mapstructure:"maxOrderSize" json:"maxOrderSize"`
	MaxShortPosition     int64   `mapstructure:"maxShortPosition" json:"maxShortPosition"`
	SentimentDecayGlobal float64 `mapstructure:"sentimentDecayGlobal" json:"sentimentDecayGlobal"`
	SentimentDecaySymbol float64 `mapstructure:"sentimentDecaySymbol" json:"sentimentDecaySymbol"`
}

type AgentGenParams struct {
	RiskAversionMean    float64 `mapstructure:"riskAversionMean" json:"riskAversionMean"`
	RiskAversionStd     float64 `mapstructure:"riskAversionStd" json:"riskAversionStd"`
	RiskAversionMin     float64 `mapstructure:"riskAversionMin" json:"riskAversionMin"`
	ReactionSpeedLambda float64 `mapstructure:"reactionSpeedLambda" json:"reactionSpeedLambda"`
	NewsWeightMin       float64 `mapstructure:"newsWeightMin" json:"newsWeightMin"`
	NewsWeightMax       float64 `mapstructure:"newsWeightMax" json:"newsWeightMax"`
	ConfidenceMin       float64 `mapstructure:"confidenceMin" json:"confidenceMin"`
	ConfidenceMax       float64 `mapstructure:"confidenceMax" json:"confidenceMax"`
	TimeHorizonMu       float64 `mapstructure:"timeHorizonMu" json:"timeHorizonMu"`
	TimeHorizonSigma    float64 `mapstructure:"timeHorizonSigma" json:"timeHorizonSigma"`
}

type MarketMakerParams struct {
	BaseSpreadMin                float64 `mapstructure:"baseSpreadMin" json:"baseSpreadMin"`
	BaseSpreadMax                float64 `mapstructure:"baseSpreadMax" json:"baseSpreadMax"`
	InventorySkewMin             float64 `mapstructure:"inventorySkewMin" json:"inventorySkewMin"`
	InventorySkewMax             float64 `mapstructure:"inventorySkewMax" json:"inventorySkewMax"`
	MaxInventoryMin              int64   `mapstructure:"maxInventoryMin" json:"maxInventoryMin"`
	MaxInventoryMax              int64   `mapstructure:"maxInventoryMax" json:"maxInventoryMax"`
	InitialInventoryPerCommodity int64   `mapstructure:"initialInventoryPerCommodity" json:"initialInventoryPerCommodity"`
	QuoteCapitalFrac             float64 `mapstructure:"quoteCapitalFrac" json:"quoteCapitalFrac"`
	SentimentSpreadMult          float64 `mapstructure:"sentimentSpreadMult" json:"sentimentSpreadMult"`
	VolatilitySpreadMult         float64 `mapstructure:"volatilitySpreadMult" json:"volatilitySpreadMult"`
}

type SupplyDemandParams struct {
	ThresholdBase       float64 `mapstructure:"thresholdBase" json:"thresholdBase"`
	ThresholdRiskScale  float64 `mapstructure:"thresholdRiskScale" json:"thresholdRiskScale"`
	NoiseStdBase        float64 `mapstructure:"noiseStdBase" json:"noiseStdBase"`
	NoiseStdRange       float64 `mapstructure:"noiseStdRange" json:"noiseStdRange"`
	SentimentImpact     float64 `mapstructure:"sentimentImpact" json:"sentimentImpact"`
	ReactionMult        float64 `mapstructure:"reactionMult" json:"reactionMult"`
	LimitPriceSpreadMax float64 `mapstructure:"limitPriceSpreadMax" json:"limitPriceSpreadMax"`
}

type MomentumParams struct {
	ShortPeriodMin           int     `mapstructure:"shortPeriodMin" json:"shortPeriodMin"`
	ShortPeriodRange         int     `mapstructure:"shortPeriodRange" json:"shortPeriodRange"`
	LongPeriodOffsetMin      int     `mapstructure:"longPeriodOffsetMin" json:"longPeriodOffsetMin"`
	LongPeriodOffsetRange    int     `mapstructure:"longPeriodOffsetRange" json:"longPeriodOffsetRange"`
	ReactionMult             float64 `mapstructure:"reactionMult" json:"reactionMult"`
	LimitOffsetMin           float64 `mapstructure:"limitOffsetMin" json:"limitOffsetMin"`
	LimitOffsetMax           float64 `mapstructure:"limitOffsetMax" json:"limitOffsetMax"`
	SignalThresholdRiskScale float64 `mapstructure:"signalThresholdRiskScale" json:"signalThresholdRiskScale"`
	GlobalSentWeight         float64 `mapstructure:"globalSentWeight" json:"globalSentWeight"`
}

type MeanReversionParams struct {
	LookbackMin         int     `mapstructure:"lookbackMin" json:"lookbackMin"`
	LookbackRange       int     `mapstructure:"lookbackRange" json:"lookbackRange"`
	ZThresholdMin       float64 `mapstructure:"zThresholdMin" json:"zThresholdMin"`
	ZThresholdRange     float64 `mapstructure:"zThresholdRange" json:"zThresholdRange"`
	ReactionMult        float64 `mapstructure:"reactionMult" json:"reactionMult"`
	LimitPriceSpreadMax float64 `mapstructure:"limitPriceSpreadMax" json:"limitPriceSpreadMax"`
	SentSymbolWeight    float64 `mapstructure:"sentSymbolWeight" json:"sentSymbolWeight"`
	SentGlobalWeight    float64 `mapstructure:"sentGlobalWeight" json:"sentGlobalWeight"`
}

type NoiseParams struct {
	TradeProbMin       float64 `mapstructure:"tradeProbMin" json:"tradeProbMin"`
	TradeProbRange     float64 `mapstructure:"tradeProbRange" json:"tradeProbRange"`
	SentSensitivityMin float64 `mapstructure:"sentSensitivityMin" json:"sentSensitivityMin"`
	SentSensitivityMax float64 `mapstructure:"sentSensitivityMax" json:"sentSensitivityMax"`
	OverreactionMult   float64 `mapstructure:"overreactionMult" json:"overreactionMult"`
	MarketOrderProb    float64 `mapstructure:"marketOrderProb" json:"marketOrderProb"`
	SentimentDecay     float64 `mapstructure:"sentimentDecay" json:"sentimentDecay"`
	SymbolSentDecay    float64 `mapstructure:"symbolSentDecay" json:"symbolSentDecay"`
	LimitOffsetMin     float64 `mapstructure:"limitOffsetMin" json:"limitOffsetMin"`
	LimitOffsetMax     float64 `mapstructure:"limitOffsetMax" json:"limitOffsetMax"`
	ConfidenceMin      float64 `mapstructure:"confidenceMin" json:"confidenceMin"`
	ConfidenceMax      float64 `mapstructure:"confidenceMax" json:"confidenceMax"`
	BuyBiasSentWeight  float64 `mapstructure:"buyBiasSentWeight" json:"buyBiasSentWeight"`
	BuyBiasNoiseStd    float64 `mapstructure:"buyBiasNoiseStd" json:"buyBiasNoiseStd"`
}

type CrossEffectsParams struct {
	LookbackMin        int     `mapstructure:"lookbackMin" json:"lookbackMin"`
	LookbackRange      int     `mapstructure:"lookbackRange" json:"lookbackRange"`
	ThresholdBase      float64 `mapstructure:"thresholdBase" json:"thresholdBase"`
	ThresholdRiskScale float64 `mapstructure:"thresholdRiskScale" json:"thresholdRiskScale"`
	ReactionMult       float64 `mapstructure:"reactionMult" json:"reactionMult"`
	CrossEffectWeight  float64 `mapstructure:"crossEffectWeight" json:"crossEffectWeight"`
}

type InventoryParams struct {
	TargetRatioBase            float64 `mapstructure:"targetRatioBase" json:"targetRatioBase"`
	TargetRatioRange           float64 `mapstructure:"targetRatioRange" json:"targetRatioRange"`
	RebalanceThresholdBase     float64 `mapstructure:"rebalanceThresholdBase" json:"rebalanceThresholdBase"`
	RebalanceThresholdRiskScale float64 `mapstructure:"rebalanceThresholdRiskScale" json:"rebalanceThresholdRiskScale"`
	ReactionMult               float64 `mapstructure:"reactionMult" json:"reactionMult"`
}

type EventParams struct {
	ReactionThresholdBase      float64 `mapstructure:"reactionThresholdBase" json:"reactionThresholdBase"`
	ReactionThresholdRiskScale float64 `mapstructure:"reactionThresholdRiskScale" json:"reactionThresholdRiskScale"`
	CooldownBase               int     `mapstructure:"cooldownBase" json:"cooldownBase"`
	CooldownRange              int     `mapstructure:"cooldownRange" json:"cooldownRange"`
	ReactionMult               float64 `mapstructure:"reactionMult" json:"reactionMult"`
}

type NewsParams struct {
	Lambda            float64 `mapstructure:"lambda" json:"lambda"`
	GlobalImpactStd   float64 `mapstructure:"globalImpactStd" json:"globalImpactStd"`
	PoliticalImpactStd float64 `mapstructure:"politicalImpactStd" json:"politicalImpactStd"`
	SupplyImpactStd   float64 `mapstructure:"supplyImpactStd" json:"supplyImpactStd"`
	DemandImpactStd   float64 `mapstructure:"demandImpactStd" json:"demandImpactStd"`
}

// CommoditySpec describes one instrument in the catalog.
type CommoditySpec struct {
	Symbol          string  `mapstructure:"symbol" json:"symbol"`
	Name            string  `mapstructure:"name" json:"name"`
	Category        string  `mapstructure:"category" json:"category"`
	BasePrice       float64 `mapstructure:"basePrice" json:"basePrice"`
	BaseProduction  float64 `mapstructure:"baseProduction" json:"baseProduction"`
	BaseConsumption float64 `mapstructure:"baseConsumption" json:"baseConsumption"`
	BaseInventory   float64 `mapstructure:"baseInventory" json:"baseInventory"`
}

// CrossEffectSpec is one directed edge in the cross-commodity influence graph.
type CrossEffectSpec struct {
	Source      string  `mapstructure:"source" json:"source"`
	Target      string  `mapstructure:"target" json:"target"`
	Coefficient float64 `mapstructure:"coefficient" json:"coefficient"`
}

// Default returns a RuntimeConfig with every knob at its stock value.
func Default() *RuntimeConfig {
	return &RuntimeConfig{
		Simulation: SimulationParams{
			TickRateMs:              50,
			MaxTicks:                0,
			TicksPerDay:             72000,
			PopulateTicksPerDay:     576,
			PopulateFineTicksPerDay: 1440,
			PopulateFineDays:        7,
			StartDate:               "2024-01-02",
		},
		Commodity: CommodityParams{
			CircuitBreakerLimit: 0.15,
			ImpactDampening:     0.5,
			PriceFloor:          0.01,
			SupplyDecayRate:     0.1,
			DemandDecayRate:     0.1,
		},
		OrderBook: OrderBookParams{
			OrderExpiryMs: 172800000,
		},
		AgentCounts: AgentCounts{
			SupplyDemand:  20,
			Momentum:      15,
			MeanReversion: 15,
			Noise:         30,
			MarketMaker:   5,
			CrossEffects:  10,
			Inventory:     10,
			Event:         10,
		},
		AgentCash: AgentCashParams{
			MeanCash: 100000.0,
			StdCash:  20000.0,
		},
		AgentGlobal: AgentGlobalParams{
			CapitalFraction:      0.05,
			CashReserve:          0.10,
			MaxOrderSize:         500,
			MaxShortPosition:     100,
			SentimentDecayGlobal: 0.95,
			SentimentDecaySymbol: 0.90,
		},
		AgentGen: AgentGenParams{
			RiskAversionMean:    1.0,
			RiskAversionStd:     0.3,
			RiskAversionMin:     0.1,
			ReactionSpeedLambda: 1.0,
			NewsWeightMin:       0.5,
			NewsWeightMax:       1.5,
			ConfidenceMin:       0.3,
			ConfidenceMax:       1.0,
			TimeHorizonMu:       3.0,
			TimeHorizonSigma:    0.5,
		},
		MarketMaker: MarketMakerParams{
			BaseSpreadMin:                0.001,
			BaseSpreadMax:                0.003,
			InventorySkewMin:             0.0005,
			InventorySkewMax:             0.0015,
			MaxInventoryMin:              500,
			MaxInventoryMax:              1500,
			InitialInventoryPerCommodity: 100,
			QuoteCapitalFrac:             0.02,
			SentimentSpreadMult:          0.5,
			VolatilitySpreadMult:         10.0,
		},
		SupplyDemand: SupplyDemandParams{
			ThresholdBase:       0.02,
			ThresholdRiskScale:  0.03,
			NoiseStdBase:        0.01,
			NoiseStdRange:       0.02,
			SentimentImpact:     0.2,
			ReactionMult:        0.3,
			LimitPriceSpreadMax: 0.005,
		},
		Momentum: MomentumParams{
			ShortPeriodMin:           3,
			ShortPeriodRange:         4,
			LongPeriodOffsetMin:      10,
			LongPeriodOffsetRange:    15,
			ReactionMult:             0.25,
			LimitOffsetMin:           0.0005,
			LimitOffsetMax:           0.005,
			SignalThresholdRiskScale: 0.001,
			GlobalSentWeight:         0.05,
		},
		MeanReversion: MeanReversionParams{
			LookbackMin:         20,
			LookbackRange:       20,
			ZThresholdMin:       1.5,
			ZThresholdRange:     1.0,
			ReactionMult:        0.2,
			LimitPriceSpreadMax: 0.005,
			SentSymbolWeight:    0.2,
			SentGlobalWeight:    0.1,
		},
		Noise: NoiseParams{
			TradeProbMin:       0.05,
			TradeProbRange:     0.10,
			SentSensitivityMin: 0.3,
			SentSensitivityMax: 0.8,
			OverreactionMult:   1.0,
			MarketOrderProb:    0.1,
			SentimentDecay:     0.98,
			SymbolSentDecay:    0.95,
			LimitOffsetMin:     0.001,
			LimitOffsetMax:     0.01,
			ConfidenceMin:      0.2,
			ConfidenceMax:      0.5,
			BuyBiasSentWeight:  0.3,
			BuyBiasNoiseStd:    0.1,
		},
		CrossEffects: CrossEffectsParams{
			LookbackMin:        5,
			LookbackRange:      10,
			ThresholdBase:      0.02,
			ThresholdRiskScale: 0.02,
			ReactionMult:       0.2,
			CrossEffectWeight:  0.3,
		},
		Inventory: InventoryParams{
			TargetRatioBase:             0.1,
			TargetRatioRange:            0.05,
			RebalanceThresholdBase:      0.02,
			RebalanceThresholdRiskScale: 0.02,
			ReactionMult:                0.15,
		},
		Event: EventParams{
			ReactionThresholdBase:      0.03,
			ReactionThresholdRiskScale: 0.02,
			CooldownBase:               10,
			CooldownRange:              20,
			ReactionMult:               0.5,
		},
		News: NewsParams{
			Lambda:             0.12,
			GlobalImpactStd:    0.02,
			PoliticalImpactStd: 0.04,
			SupplyImpactStd:    0.05,
			DemandImpactStd:    0.05,
		},
		Catalog:    DefaultCatalog(),
		CrossTable: DefaultCrossTable(),
	}
}

// DefaultCatalog is the instrument set used when the config file supplies none.
func DefaultCatalog() []CommoditySpec {
	return []CommoditySpec{
		{Symbol: "OIL", Name: "Crude Oil", Category: "Energy", BasePrice: 75.0, BaseProduction: 1000, BaseConsumption: 1000, BaseInventory: 5000},
		{Symbol: "STEEL", Name: "Steel", Category: "Industrial", BasePrice: 120.0, BaseProduction: 800, BaseConsumption: 800, BaseInventory: 4000},
		{Symbol: "WOOD", Name: "Lumber", Category: "Construction", BasePrice: 45.0, BaseProduction: 1200, BaseConsumption: 1200, BaseInventory: 6000},
		{Symbol: "BRICK", Name: "Brick", Category: "Construction", BasePrice: 25.0, BaseProduction: 1500, BaseConsumption: 1500, BaseInventory: 7500},
		{Symbol: "GRAIN", Name: "Grain", Category: "Agriculture", BasePrice: 8.0, BaseProduction: 2000, BaseConsumption: 2000, BaseInventory: 10000},
	}
}

// DefaultCrossTable encodes how a price move in one commodity propagates to
// the others.
func DefaultCrossTable() []CrossEffectSpec {
	return []CrossEffectSpec{
		{Source: "OIL", Target: "STEEL", Coefficient: 0.25},
		{Source: "OIL", Target: "BRICK", Coefficient: 0.15},
		{Source: "OIL", Target: "WOOD", Coefficient: 0.10},
		{Source: "STEEL", Target: "OIL", Coefficient: 0.30},
		{Source: "STEEL", Target: "BRICK", Coefficient: 0.35},
		{Source: "STEEL", Target: "WOOD", Coefficient: 0.20},
		{Source: "WOOD", Target: "BRICK", Coefficient: 0.30},
		{Source: "WOOD", Target: "STEEL", Coefficient: 0.15},
		{Source: "BRICK", Target: "STEEL", Coefficient: 0.40},
		{Source: "BRICK", Target: "WOOD", Coefficient: 0.35},
	}
}

// Load reads an optional YAML or JSON config file on top of the defaults.
// An empty path returns the defaults untouched.
func Load(path string) (*RuntimeConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// MergePatch applies a partial update to the config. Only keys present in
// patch change; everything else keeps its current value. The receiver is not
// mutated on error.
func (c *RuntimeConfig) MergePatch(patch map[string]any) (*RuntimeConfig, error) {
	v := viper.New()
	v.SetConfigType("json")

	current, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode current config: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(current)); err != nil {
		return nil, fmt.Errorf("load current config: %w", err)
	}
	if err := v.MergeConfigMap(patch); err != nil {
		return nil, fmt.Errorf("merge config patch: %w", err)
	}

	merged := new(RuntimeConfig)
	if err := v.Unmarshal(merged); err != nil {
		return nil, fmt.Errorf("apply config patch: %w", err)
	}
	return merged, nil
}

// coldSections are the top-level keys that only take effect after a
// reinitialize: they shape the agent population, the instrument catalog, or
// the time base.
var coldSections = map[string]bool{
	"agentCounts": true,
	"agentCash":   true,
	"agentGen":    true,
	"catalog":     true,
	"crossTable":  true,
}

var coldSimulationKeys = map[string]bool{
	"ticksPerDay": true,
	"startDate":   true,
}

// RequiresReinit reports whether any key in the patch is cold, so the caller
// can tell the client that the change is pending a reinitialize.
func RequiresReinit(patch map[string]any) bool {
	for section, val := range patch {
		if coldSections[section] {
			return true
		}
		if section == "simulation" {
			sub, ok := val.(map[string]any)
			if !ok {
				continue
			}
			for k := range sub {
				if coldSimulationKeys[strings.TrimSpace(k)] {
					return true
				}
			}
		}
	}
	return false
}

// Clone returns a deep copy. Slices are the only reference fields.
func (c *RuntimeConfig) Clone() *RuntimeConfig {
	out := *c
	out.Catalog = append([]CommoditySpec(nil), c.Catalog...)
	out.CrossTable = append([]CrossEffectSpec(nil), c.CrossTable...)
	return &out
}
