package services

// GatewayOutcome is the internal status vocabulary shared by both
// gateway adapters. Each adapter owns the mapping from its gateway's
// native response codes into this set.
type GatewayOutcome string

const (
	OutcomeSuccess   GatewayOutcome = "SUCCESS"
	OutcomeFailed    GatewayOutcome = "FAILED"
	OutcomePending   GatewayOutcome = "PENDING"
	OutcomeCancelled GatewayOutcome = "CANCELLED"
	// OutcomeUnknown is an unrecognized gateway code: logged, but it
	// never advances the state machine past PROCESSING.
	OutcomeUnknown GatewayOutcome = "UNKNOWN"
)

// GatewayResult is the verified outcome of a gateway re-verification
// call for one transaction.
type GatewayResult struct {
	Outcome          GatewayOutcome
	GatewayReference string
	PaymentMethod    string
	ResponseCode     string
	ResponseMessage  string
}
