package evaluation

// Band is a return interval of ±Sigmas·risk around the expected return
type Band struct {
	Label  string  `json:"label"`
	Sigmas int     `json:"sigmas"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// ConfidenceBands holds the ±1σ, ±2σ and ±3σ bands (68%, 95%, 99.7% under a normal approximation)
type ConfidenceBands [3]Band

var bandLabels = [3]string{"68", "95", "997"}

// Bands returns the confidence bands around m.Return
func (m Metrics) Bands() ConfidenceBands {
	var bands ConfidenceBands
	for i := range bands {
		k := i + 1
		bands[i] = Band{
			Label:  bandLabels[i],
			Sigmas: k,
			Lower:  m.Return - float64(k)*m.Risk,
			Upper:  m.Return + float64(k)*m.Risk,
		}
	}
	return bands
}
