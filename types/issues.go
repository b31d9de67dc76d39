package types

// Issue records a raw record that did not make it into the published set.
type Issue struct {
	IssueID      string
	IssueType    IssueType
	ProviderID   string
	ResourceID   string
	ResourceName string
	ResourceType string
	Detail       string
}

type IssueType string

const (
	IssueTypeNone           IssueType = "None"
	IssueTypeNoEntity       IssueType = "NoEntity"
	IssueTypeMappingError   IssueType = "MappingError"
	IssueTypeDuplicateID    IssueType = "DuplicateResourceID"
	IssueTypeIgnoredByRegex IssueType = "IgnoredResourceID"
)

func (issueType IssueType) IsValidIssueType() bool {
	switch issueType {
	case IssueTypeNone,
		IssueTypeNoEntity,
		IssueTypeMappingError,
		IssueTypeDuplicateID,
		IssueTypeIgnoredByRegex:
		return true
	default:
		return false
	}
}
