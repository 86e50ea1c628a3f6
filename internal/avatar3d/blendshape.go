package avatar3d

// ExpressionIndex identifies one of the VRM preset expressions driven by the loop.
type ExpressionIndex int

const (
	ExprHappy ExpressionIndex = iota
	ExprAngry
	ExprSad
	ExprRelaxed
	ExprSurprised
	ExprAa
	ExprBlink
	ExprLookUp
	ExprLookDown
	ExprLookLeft
	ExprLookRight
	ExpressionCount
)

var ExpressionNames = [ExpressionCount]string{
	"happy",
	"angry",
	"sad",
	"relaxed",
	"surprised",
	"aa",
	"blink",
	"lookUp",
	"lookDown",
	"lookLeft",
	"lookRight",
}

func (i ExpressionIndex) String() string {
	if i < 0 || i >= ExpressionCount {
		return ""
	}
	return ExpressionNames[i]
}

// ExpressionWeights holds one weight in [0,1] per expression.
type ExpressionWeights [ExpressionCount]float64

func (w *ExpressionWeights) Set(idx ExpressionIndex, value float64) {
	if idx < 0 || idx >= ExpressionCount {
		return
	}
	w[idx] = clamp(value, 0, 1)
}

func (w *ExpressionWeights) Get(idx ExpressionIndex) float64 {
	if idx < 0 || idx >= ExpressionCount {
		return 0
	}
	return w[idx]
}

func (w *ExpressionWeights) Reset() {
	for i := range w {
		w[i] = 0
	}
}

// Lerp returns w moved toward target by t.
func (w *ExpressionWeights) Lerp(target *ExpressionWeights, t float64) ExpressionWeights {
	t = clamp(t, 0, 1)
	var out ExpressionWeights
	for i := range w {
		out[i] = w[i] + (target[i]-w[i])*t
	}
	return out
}

// Map converts the weights into the name-keyed form sent to sinks.
func (w *ExpressionWeights) Map() map[string]float64 {
	out := make(map[string]float64, ExpressionCount)
	for i, v := range w {
		out[ExpressionNames[i]] = v
	}
	return out
}

func clamp(v, min, max float64) float64 {
	if v != v {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
