package models

// BusinessContext describes the sender's own company for the active project.
type BusinessContext struct {
	ID             string   `json:"id"`
	ProjectName    string   `json:"projectName"`
	CompanyName    string   `json:"companyName"`
	Website        string   `json:"website,omitempty"`
	Description    string   `json:"description,omitempty"`
	Products       []string `json:"products,omitempty"`
	ValueProps     []string `json:"valueProps,omitempty"`
	Competitors    []string `json:"competitors,omitempty"`
	TargetCustomer string   `json:"targetCustomer,omitempty"`
	SenderName     string   `json:"senderName,omitempty"`
	SenderTitle    string   `json:"senderTitle,omitempty"`
	SenderEmail    string   `json:"senderEmail,omitempty"`
}
