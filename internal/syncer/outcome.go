package syncer

// Status tags one row's terminal state.
type Status string

const (
	// StatusDone — the row ran to completion, whether or not a write occurred.
	StatusDone Status = "done"
	// StatusSkipped — the row was abandoned without corrupting anything.
	StatusSkipped Status = "skipped"
	// StatusFatal — bad input data; invalidates the rest of the batch.
	StatusFatal Status = "fatal"
)

// Outcome is one row's tagged result, accumulated into the end-of-run report.
type Outcome struct {
	Index   int
	Key     string
	Status  Status
	Written bool
	Reason  string
}

// StopReason names why a batch ended before the dataset did.
type StopReason string

const (
	StopEndOfDataset StopReason = "end_of_dataset"
	StopMaxIndex     StopReason = "max_index"
	StopHeapCeiling  StopReason = "heap_ceiling"
)

// Report summarizes one batch run. LastIndex is the explicit resume point for
// the next invocation.
type Report struct {
	Outcomes      []Outcome
	RowsProcessed int
	RowsWritten   int
	RowsSkipped   int
	LastIndex     int
	StopReason    StopReason
}

func (r *Report) append(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	r.RowsProcessed++
	switch outcome.Status {
	case StatusDone:
		if outcome.Written {
			r.RowsWritten++
		}
	case StatusSkipped:
		r.RowsSkipped++
	}
}
