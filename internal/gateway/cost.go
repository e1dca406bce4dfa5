package gateway

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides hardcoded USD pricing per 1M text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// CompletionCost converts token usage to USD for the given model. Unknown
// models (and the local fallback) cost zero.
func CompletionCost(model string, usage Usage) float64 {
	p, ok := defaultPricing[model]
	if !ok {
		return 0
	}
	return p.InputPerM*float64(usage.InputTokens)/1_000_000.0 +
		p.OutputPerM*float64(usage.OutputTokens)/1_000_000.0
}
