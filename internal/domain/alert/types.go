package alert

// Severity represents the severity level of a rule or alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the numeric ordering of a severity, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	default:
		return -1
	}
}

// IsValid reports whether the severity is one of the known levels.
func (s Severity) IsValid() bool {
	return s.Rank() >= 0
}

// Category classifies the operational area a rule monitors
type Category string

const (
	CategoryPerformance        Category = "performance"
	CategoryCompliance         Category = "compliance"
	CategorySecurity           Category = "security"
	CategoryIntegration        Category = "integration"
	CategoryHealthcareWorkflow Category = "healthcare-workflow"
	CategoryBusinessLogic      Category = "business-logic"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryPerformance, CategoryCompliance, CategorySecurity,
		CategoryIntegration, CategoryHealthcareWorkflow, CategoryBusinessLogic:
		return true
	default:
		return false
	}
}

// Operator represents a threshold comparison operator
type Operator string

const (
	OpGreaterThan  Operator = "gt"
	OpLessThan     Operator = "lt"
	OpEqual        Operator = "eq"
	OpGreaterEqual Operator = "gte"
	OpLessEqual    Operator = "lte"
)

func (o Operator) IsValid() bool {
	switch o {
	case OpGreaterThan, OpLessThan, OpEqual, OpGreaterEqual, OpLessEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to an observed value and a threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGreaterThan:
		return value > threshold
	case OpLessThan:
		return value < threshold
	case OpEqual:
		return value == threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	default:
		return false
	}
}

// Channel represents a notification delivery channel
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelSlack     Channel = "slack"
	ChannelDashboard Channel = "dashboard"
)

// DeliveryStatus records the outcome of a single notification attempt
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Status represents the lifecycle state of an alert
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Trend signals the direction of alert volume over the last day
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)
