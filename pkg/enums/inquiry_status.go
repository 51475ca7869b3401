package enums

// InquiryStatus maps to the inquiry_status postgres enum.
type InquiryStatus string

const (
	InquiryStatusPending    InquiryStatus = "pending"
	InquiryStatusInProgress InquiryStatus = "in_progress"
	InquiryStatusResolved   InquiryStatus = "resolved"
)

var inquiryStatuses = newSet("inquiry status", InquiryStatusPending, InquiryStatusInProgress, InquiryStatusResolved)

func (s InquiryStatus) String() string { return string(s) }
func (s InquiryStatus) IsValid() bool  { return inquiryStatuses.has(s) }

func ParseInquiryStatus(value string) (InquiryStatus, error) { return inquiryStatuses.parse(value) }
