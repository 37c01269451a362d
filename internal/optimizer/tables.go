package optimizer

import "wastewater-ai/internal/rules"

// Rule constants. Settling, sludge and dosing rules are linear in the
// contamination index; aeration and blower speed step through breakpoints.
const (
	baseSettlingMin      = 60.0
	settlingPerCI        = 0.5
	baseCoagulantMgL     = 50.0
	coagulantCIGain      = 1.5
	minCoagulantML       = 20.0
	maxCoagulantML       = 200.0
	referenceFlowLPM     = 1000.0
	baseSVI              = 80.0
	sviPerCI             = 0.5
	minSVI               = 50.0
	maxSVI               = 200.0
	maxDOTarget          = 4.0
	minDOTarget          = 2.0
	doDropAtFullCI       = 2.0
	defaultSludgeAgeDays = 10.0
	minSludgeAgeDays     = 5.0
	maxSludgeAgeDays     = 15.0
	minAerationMin       = 180.0
	maxAerationMin       = 480.0
	baseLoadAerationMin  = 240.0
	bodTargetMgL         = 30.0
	codTargetMgL         = 100.0
	maxFiltrationLPM     = 15.0
	minFiltrationLPM     = 5.0
	filtrationDropPerCI  = 0.1
	baseChlorineML       = 2.0
	minChlorineML        = 1.0
	maxChlorineML        = 5.0
	roQualityThreshold   = 50.0
	scoreMin             = 0.0
	scoreMax             = 100.0
	sensorFlowRate       = "flow_rate_lpm"
	sensorBOD            = "bod"
	sensorCOD            = "cod"
)

var aerationTable = rules.Table{
	Name: "aeration_time_min",
	Breakpoints: []rules.Breakpoint{
		{Below: 20, Value: 180},
		{Below: 40, Value: 240},
		{Below: 60, Value: 300},
		{Below: 80, Value: 390},
	},
	Default: 480,
}

var blowerTable = rules.Table{
	Name: "blower_speed_rpm",
	Breakpoints: []rules.Breakpoint{
		{Below: 20, Value: 900},
		{Below: 40, Value: 1000},
		{Below: 60, Value: 1150},
		{Below: 80, Value: 1300},
	},
	Default: 1450,
}

// Tier is a reuse classification.
type Tier string

const (
	TierDrinking      Tier = "drinking"
	TierIndustrial    Tier = "industrial"
	TierIrrigation    Tier = "irrigation"
	TierEnvironmental Tier = "environmental"
)

// TierRule is one row of the reuse table.
type TierRule struct {
	Tier        Tier
	MinQuality  float64
	Recovery    float64
	Description string
}

// reuseTiers is ordered from the strictest tier down; the last row is always
// satisfiable.
var reuseTiers = []TierRule{
	{TierDrinking, 90, 75, "Suitable for drinking water after RO treatment"},
	{TierIndustrial, 70, 90, "Suitable for industrial reuse (cooling, process water)"},
	{TierIrrigation, 55, 85, "Suitable for agricultural irrigation"},
	{TierEnvironmental, 0, 95, "Suitable for environmental discharge"},
}

// Tiers returns a copy of the reuse table, strictest first.
func Tiers() []TierRule {
	return append([]TierRule(nil), reuseTiers...)
}
