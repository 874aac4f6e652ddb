package issue

// Named is a field value that carries a display name, such as a status,
// priority or issue type.
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// User is a person field such as assignee or reporter.
type User struct {
	Name         string `json:"name,omitempty"`
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// BasicFields is the default projection used when no field list is given.
type BasicFields struct {
	Summary   string `json:"summary"`
	Status    *Named `json:"status,omitempty"`
	IssueType *Named `json:"issuetype,omitempty"`
	Priority  *Named `json:"priority,omitempty"`
	Assignee  *User  `json:"assignee,omitempty"`
	Updated   string `json:"updated,omitempty"`
}

// FieldList implements FieldLister.
func (BasicFields) FieldList() []string {
	return []string{"summary", "status", "issuetype", "priority", "assignee", "updated"}
}
