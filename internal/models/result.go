package models

// OperationResult is the value returned by every mutating operation exposed
// through the facade. A failure always carries a non-empty message; Detail
// holds the technical diagnostic for callers that want it.
type OperationResult struct {
	Success bool
	Message string
	Detail  string
}

// ResultOK returns a successful result.
func ResultOK(message string) OperationResult {
	return OperationResult{Success: true, Message: message}
}

// ResultFailure returns a failed result. If err is non-nil its text is
// attached as the detail.
func ResultFailure(message string, err error) OperationResult {
	result := OperationResult{Success: false, Message: message}
	if message == "" {
		result.Message = "operation failed"
	}
	if err != nil {
		result.Detail = err.Error()
	}
	return result
}
