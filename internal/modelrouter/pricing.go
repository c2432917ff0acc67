package modelrouter

// Price holds per-million-token USD rates for one model.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// pricing is the model pricing table. Rates are USD per 1M tokens.
var pricing = map[string]Price{
	"gpt-4.1":      {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"gpt-4.1-nano": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"o4-mini":      {InputPerMillion: 1.10, OutputPerMillion: 4.40},
}

// PriceFor returns the pricing for a model id. Unknown ids return a
// zero price and ok=false; callers treat that as cost 0, not an error.
func PriceFor(modelID string) (Price, bool) {
	p, ok := pricing[modelID]
	return p, ok
}

// Cost computes the USD cost of a call against the pricing table.
// Unknown model ids cost 0.
func Cost(modelID string, inputTokens, outputTokens int) float64 {
	p, ok := pricing[modelID]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*p.InputPerMillion +
		float64(outputTokens)/1e6*p.OutputPerMillion
}
