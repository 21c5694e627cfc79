package core

// BadConfigError signals an invalid configuration discovered at
// construction time. It is never meant to be recovered from.
type BadConfigError struct {
	Reason string
}

func (e *BadConfigError) Error() string { return "bad config: " + e.Reason }

// BadInputError signals malformed input to a pure computation (the
// weighted statistics kernel, a detector's data bundle).
type BadInputError struct {
	Reason string
}

func (e *BadInputError) Error() string { return "bad input: " + e.Reason }

// BadSchemaError signals that a loader query result is missing a
// required column (timestamp or value). Fatal for the Load step.
type BadSchemaError struct {
	Reason string
}

func (e *BadSchemaError) Error() string { return "bad schema: " + e.Reason }

// NoWatermarkError signals the loader was asked to resume without a
// saved watermark and without an explicit from_date. Fatal for Load.
type NoWatermarkError struct {
	MetricName string
}

func (e *NoWatermarkError) Error() string {
	return "no watermark for metric: " + e.MetricName
}

// BadTemplateError signals a query template syntax error, or, in
// strict mode, a reference to an undefined variable. Fatal for Load.
type BadTemplateError struct {
	Reason string
}

func (e *BadTemplateError) Error() string { return "bad template: " + e.Reason }

// LockContentionError signals that another run holds the pipeline lock
// and its timeout has not yet elapsed. Reported, never retried by the
// same invocation.
type LockContentionError struct {
	MetricName string
}

func (e *LockContentionError) Error() string {
	return "failed to acquire lock for " + e.MetricName
}

// TransientError wraps a database/network failure. The pipeline run
// ends failed; the next scheduled invocation is the unit of retry.
type TransientError struct {
	Reason string
}

func (e *TransientError) Error() string { return "transient error: " + e.Reason }
