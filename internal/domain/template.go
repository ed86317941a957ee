package domain

import "time"

// TemplateVariable documents a {{slot}} a response template expects.
type TemplateVariable struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// ResponseTemplate is a canned reply supervisors can fill in and send.
type ResponseTemplate struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	Category  string             `json:"category" yaml:"category"`
	Content   string             `json:"content" yaml:"content"`
	Variables []TemplateVariable `json:"variables" yaml:"variables"`
	CreatedBy string             `json:"createdBy" yaml:"createdBy"`
	IsShared  bool               `json:"isShared" yaml:"isShared"`
	CreatedAt time.Time          `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time          `json:"updatedAt" yaml:"-"`
}
