package metrics

const (
	LabelResource  = "resource"
	LabelReason    = "reason"
	LabelMechanism = "mechanism"
	LabelOutcome   = "outcome"
)

const (
	ResourceBlock = "block"
)
