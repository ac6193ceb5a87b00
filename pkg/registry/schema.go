// pkg/registry/schema.go
package registry

// TemplateRegistry is the versioned catalog of notification templates loaded
// at startup. Templates are addressed by ID, matching the TemplateKind values
// the workflow engine emits.
type TemplateRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Templates   []Template `json:"templates"`
}

// Template describes one notification template across delivery channels.
// Body fields use Go text/template syntax; Variables lists the context keys
// the bodies reference, for operator documentation.
type Template struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Channels    []string `json:"channels"`
	Subject     string   `json:"subject,omitempty"`
	EmailBody   string   `json:"emailBody,omitempty"`
	SMSBody     string   `json:"smsBody,omitempty"`
	Variables   []string `json:"variables,omitempty"`
}

// HasChannel reports whether the template is declared for the named channel.
func (t *Template) HasChannel(channel string) bool {
	for _, c := range t.Channels {
		if c == channel {
			return true
		}
	}
	return false
}
