package transition

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Fade curve names.
const (
	CurveLinear     = "linear"
	CurveCosine     = "cosine"
	CurveSigmoid    = "sigmoid"
	CurveEqualPower = "equal_power"
	CurveSmoothstep = "smoothstep"
)

var curves = map[string]func(float64) float64{
	CurveLinear:     func(t float64) float64 { return t },
	CurveCosine:     func(t float64) float64 { return 0.5 - 0.5*math.Cos(2*math.Pi*t) },
	CurveSigmoid:    func(t float64) float64 { return 1 / (1 + math.Exp(-10*(t-0.5))) },
	CurveEqualPower: func(t float64) float64 { return math.Sin(t * math.Pi / 2) },
	CurveSmoothstep: Smoothstep,
}

// Curves returns the available fade curve names in sorted order.
func Curves() []string {
	names := make([]string, 0, len(curves))
	for name := range curves {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidCurve reports whether name is a known fade curve.
func ValidCurve(name string) bool {
	_, ok := curves[name]
	return ok
}

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// FadeIn samples the named curve at n evenly spaced points over [0,1],
// endpoints included. Unknown names fall back to linear.
func FadeIn(name string, n int) []float64 {
	if n <= 0 {
		return nil
	}
	f, ok := curves[name]
	if !ok {
		f = curves[CurveLinear]
	}
	t := make([]float64, n)
	if n > 1 {
		floats.Span(t, 0, 1)
	}
	for i := range t {
		t[i] = f(t[i])
	}
	return t
}

// FadeOut is the time reverse of FadeIn.
func FadeOut(name string, n int) []float64 {
	c := FadeIn(name, n)
	slices.Reverse(c)
	return c
}
