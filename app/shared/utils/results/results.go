// Package results carries the success/failure pair every service operation
// returns. Business failures are payloads destined for failure topics, not Go
// errors; infrastructure errors travel separately and trigger redelivery.
package results

// HandlerResult is a topic-addressed payload produced by mapping an
// OperationResult for publication.
type HandlerResult struct {
	Topic    string
	Payload  any
	Metadata map[string]string
}

// OperationResult holds at most one of Success or Failure.
type OperationResult struct {
	Success any
	Failure any
}

// SuccessResult wraps a success payload.
func SuccessResult(payload any) OperationResult {
	return OperationResult{Success: payload}
}

// FailureResult wraps a business-failure payload.
func FailureResult(payload any) OperationResult {
	return OperationResult{Failure: payload}
}

// MapToHandlerResults routes the result to the matching topic. An empty
// result maps to no publications (the operation was a recognized no-op).
func (r OperationResult) MapToHandlerResults(successTopic, failureTopic string) []HandlerResult {
	switch {
	case r.Failure != nil:
		return []HandlerResult{{Topic: failureTopic, Payload: r.Failure}}
	case r.Success != nil:
		return []HandlerResult{{Topic: successTopic, Payload: r.Success}}
	default:
		return nil
	}
}
