package constants

// VehicleStatus is the overall registration status of a vehicle.
type VehicleStatus string

// Stable values (store these exact strings in DB).
const (
	VehiclePendingSubmission VehicleStatus = "PENDING_SUBMISSION" // uploaded, not yet routed
	VehicleSubmitted         VehicleStatus = "SUBMITTED"          // at least one clearance track sent
	VehicleProcessing        VehicleStatus = "PROCESSING"
	VehicleApproved          VehicleStatus = "APPROVED"
	VehicleRejected          VehicleStatus = "REJECTED"
)

// RequestType is the clearance track a request belongs to.
type RequestType string

const (
	RequestHPG       RequestType = "hpg"
	RequestInsurance RequestType = "insurance"
)

// RequestStatus is the lifecycle status of a clearance request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestReviewing RequestStatus = "REVIEWING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"  // terminal
	RequestCompleted RequestStatus = "COMPLETED" // terminal
)

// IsTerminal reports whether no further work is expected on the request.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestRejected || s == RequestCompleted
}

// TerminalRequestStatuses lists the statuses that close a request.
var TerminalRequestStatuses = []RequestStatus{RequestRejected, RequestCompleted}

// VerificationStatus is the current status of a (vehicle, category) verification.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationApproved   VerificationStatus = "APPROVED"
	VerificationRejected   VerificationStatus = "REJECTED"
)

// RecordStatus is the verdict of an external registry lookup.
type RecordStatus string

const (
	RecordValid    RecordStatus = "VALID"
	RecordFlagged  RecordStatus = "FLAGGED"
	RecordExpired  RecordStatus = "EXPIRED"
	RecordNotFound RecordStatus = "NOT_FOUND"
)

// RiskLevel buckets a fraud score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Severity is used for fraud indicators and notifications.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeverityUrgent Severity = "urgent"
	SeverityInfo   Severity = "info"
)

// SystemActor is recorded as the performer of automated actions.
const SystemActor = "system"
