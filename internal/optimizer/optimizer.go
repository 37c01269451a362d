// Package optimizer derives primary, secondary and tertiary treatment settings
// and a final reuse classification from a quality score and contamination
// index. Everything here is a pure function of its input.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"wastewater-ai/internal/rules"
)

// Input is everything Optimize looks at.
type Input struct {
	QualityScore       float64
	ContaminationIndex float64
	// Sensors carries optional raw readings; recognised keys are
	// flow_rate_lpm, bod and cod (case-insensitive).
	Sensors map[string]float64
	Target  Tier
}

// Primary treatment settings.
type Primary struct {
	SettlingTimeMin   float64  `json:"settling_time_min"`
	CoagulantDoseML   float64  `json:"coagulant_dose_ml"`
	SludgeVolumeIndex float64  `json:"sludge_volume_index"`
	Recommendations   []string `json:"recommendations"`
}

// Secondary (biological) treatment settings.
type Secondary struct {
	AerationTimeMin float64  `json:"aeration_time_min"`
	DOTargetPPM     float64  `json:"do_target_ppm"`
	BlowerSpeedRPM  float64  `json:"blower_speed_rpm"`
	SludgeAgeDays   float64  `json:"sludge_age_days"`
	Recommendations []string `json:"recommendations"`
}

// Tertiary (polishing) treatment settings.
type Tertiary struct {
	FiltrationRateLPM float64  `json:"filtration_rate_lpm"`
	ChlorineDoseML    float64  `json:"chlorine_dose_ml"`
	ROTrigger         bool     `json:"ro_trigger"`
	Recommendations   []string `json:"recommendations"`
}

// FinalReuse is the reuse decision.
type FinalReuse struct {
	ReuseType          Tier    `json:"reuse_type"`
	RecoveryPercentage float64 `json:"recovery_percentage"`
	RequestedType      Tier    `json:"requested_type"`
	Degraded           bool    `json:"degraded"`
	Description        string  `json:"description"`
}

// Dosing summarises chemical doses across stages.
type Dosing struct {
	CoagulantML float64 `json:"coagulant"`
	ChlorineML  float64 `json:"chlorine"`
}

// Result is the full optimization outcome.
type Result struct {
	QualityScore       float64    `json:"quality_score"`
	ContaminationIndex float64    `json:"contamination_index"`
	Primary            Primary    `json:"primary_treatment"`
	Secondary          Secondary  `json:"secondary_treatment"`
	Tertiary           Tertiary   `json:"tertiary_treatment"`
	FinalReuse         FinalReuse `json:"final_reuse"`
	Dosing             Dosing     `json:"dosing_ml"`
	Warnings           []string   `json:"warnings,omitempty"`
}

// ParseTier maps a request string to a tier. Empty means environmental.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TierEnvironmental, nil
	}
	for _, rule := range reuseTiers {
		if rule.Tier == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown target quality %q", s)
}

// Optimize runs every stage. Out-of-range scores are clamped and reported in
// Warnings; it never fails.
func Optimize(in Input) Result {
	var warnings []string

	q, ci := in.QualityScore, in.ContaminationIndex
	if !rules.Finite(q) {
		warnings = append(warnings, fmt.Sprintf("quality_score %v is not finite, using 0", q))
		q = scoreMin
	}
	if !rules.Finite(ci) {
		warnings = append(warnings, fmt.Sprintf("contamination_index %v is not finite, using 100", ci))
		ci = scoreMax
	}
	if v, moved := rules.Clamp(q, scoreMin, scoreMax); moved {
		warnings = append(warnings, fmt.Sprintf("quality_score %g clamped to %g", q, v))
		q = v
	}
	if v, moved := rules.Clamp(ci, scoreMin, scoreMax); moved {
		warnings = append(warnings, fmt.Sprintf("contamination_index %g clamped to %g", ci, v))
		ci = v
	}

	target, err := ParseTier(string(in.Target))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("%v, using %s", err, TierEnvironmental))
		target = TierEnvironmental
	}

	s, sensorWarnings := readSensors(in.Sensors)
	warnings = append(warnings, sensorWarnings...)

	primary := optimizePrimary(ci, s)
	secondary := optimizeSecondary(ci, s)
	tertiary := optimizeTertiary(q, ci, target)
	reuse := determineReuse(q, target)

	return Result{
		QualityScore:       rules.Round2(q),
		ContaminationIndex: rules.Round2(ci),
		Primary:            primary,
		Secondary:          secondary,
		Tertiary:           tertiary,
		FinalReuse:         reuse,
		Dosing: Dosing{
			CoagulantML: primary.CoagulantDoseML,
			ChlorineML:  tertiary.ChlorineDoseML,
		},
		Warnings: warnings,
	}
}

// sensors holds the overrides Optimize understands; nil means not supplied.
type sensors struct {
	flow *float64
	bod  *float64
	cod  *float64
}

func readSensors(raw map[string]float64) (sensors, []string) {
	var s sensors
	var warnings []string
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key != sensorFlowRate && key != sensorBOD && key != sensorCOD {
			continue
		}
		if !rules.Finite(v) {
			warnings = append(warnings, fmt.Sprintf("sensor %s=%v ignored: not finite", k, v))
			continue
		}
		if v < 0 || (key == sensorFlowRate && v == 0) {
			warnings = append(warnings, fmt.Sprintf("sensor %s=%g ignored: out of range", k, v))
			continue
		}
		val := v
		switch key {
		case sensorFlowRate:
			s.flow = &val
		case sensorBOD:
			s.bod = &val
		case sensorCOD:
			s.cod = &val
		}
	}
	// Map iteration order is random; keep the warning list stable.
	sort.Strings(warnings)
	return s, warnings
}

func optimizePrimary(ci float64, s sensors) Primary {
	flow := referenceFlowLPM
	if s.flow != nil {
		flow = *s.flow
	}

	settling := baseSettlingMin + ci*settlingPerCI
	coagulant := rules.Bound(baseCoagulantMgL*(1+ci/100*coagulantCIGain)*flow/1000, minCoagulantML, maxCoagulantML)
	svi := rules.Bound(baseSVI+ci*sviPerCI, minSVI, maxSVI)

	p := Primary{
		SettlingTimeMin:   rules.Round2(settling),
		CoagulantDoseML:   rules.Round2(coagulant),
		SludgeVolumeIndex: rules.Round2(svi),
	}
	p.Recommendations = []string{
		fmt.Sprintf("Maintain settling time of %.0f minutes", p.SettlingTimeMin),
		fmt.Sprintf("Apply coagulant dose of %.1f mL", p.CoagulantDoseML),
		fmt.Sprintf("Monitor SVI - target: %.0f mL/g", p.SludgeVolumeIndex),
	}
	return p
}

func optimizeSecondary(ci float64, s sensors) Secondary {
	aeration := aerationTable.Lookup(ci)
	if s.bod != nil || s.cod != nil {
		factor := 0.0
		if s.bod != nil {
			factor += math.Max(0, *s.bod-bodTargetMgL) / 200
		}
		if s.cod != nil {
			factor += math.Max(0, *s.cod-codTargetMgL) / 400
		}
		aeration = math.Max(aeration, baseLoadAerationMin*(1+factor))
	}
	aeration = rules.Bound(aeration, minAerationMin, maxAerationMin)

	do := rules.Bound(maxDOTarget-ci/100*doDropAtFullCI, minDOTarget, maxDOTarget)

	sludgeAge := defaultSludgeAgeDays
	if s.flow != nil {
		sludgeAge = rules.Bound(defaultSludgeAgeDays*referenceFlowLPM / *s.flow, minSludgeAgeDays, maxSludgeAgeDays)
	}

	sec := Secondary{
		AerationTimeMin: rules.Round2(aeration),
		DOTargetPPM:     rules.Round2(do),
		BlowerSpeedRPM:  math.Round(blowerTable.Lookup(ci)),
		SludgeAgeDays:   rules.Round2(sludgeAge),
	}
	sec.Recommendations = []string{
		fmt.Sprintf("Aerate for %.0f minutes", sec.AerationTimeMin),
		fmt.Sprintf("Maintain DO at %.2f mg/L", sec.DOTargetPPM),
		fmt.Sprintf("Set blower speed to %.0f RPM", sec.BlowerSpeedRPM),
		fmt.Sprintf("Target sludge age: %.1f days", sec.SludgeAgeDays),
	}
	return sec
}

func optimizeTertiary(q, ci float64, target Tier) Tertiary {
	filtration := rules.Bound(maxFiltrationLPM-ci*filtrationDropPerCI, minFiltrationLPM, maxFiltrationLPM)
	chlorine := rules.Bound(baseChlorineML*(1+ci/100), minChlorineML, maxChlorineML)
	ro := q < roQualityThreshold || target == TierDrinking

	t := Tertiary{
		FiltrationRateLPM: rules.Round2(filtration),
		ChlorineDoseML:    rules.Round2(chlorine),
		ROTrigger:         ro,
	}
	roNote := "RO not required"
	if ro {
		roNote = "RO required"
	}
	t.Recommendations = []string{
		fmt.Sprintf("Set filtration rate to %.1f LPM/m²", t.FiltrationRateLPM),
		fmt.Sprintf("Apply chlorine dose of %.2f mg/L", t.ChlorineDoseML),
		roNote,
	}
	return t
}

// determineReuse starts at the requested tier and walks down to the first
// tier whose minimum the score clears. Minimums are inclusive.
func determineReuse(q float64, target Tier) FinalReuse {
	start := 0
	for i, rule := range reuseTiers {
		if rule.Tier == target {
			start = i
			break
		}
	}
	for _, rule := range reuseTiers[start:] {
		if q >= rule.MinQuality {
			return FinalReuse{
				ReuseType:          rule.Tier,
				RecoveryPercentage: rule.Recovery,
				RequestedType:      target,
				Degraded:           rule.Tier != target,
				Description:        rule.Description,
			}
		}
	}
	last := reuseTiers[len(reuseTiers)-1]
	return FinalReuse{
		ReuseType:          last.Tier,
		RecoveryPercentage: last.Recovery,
		RequestedType:      target,
		Degraded:           last.Tier != target,
		Description:        last.Description,
	}
}
