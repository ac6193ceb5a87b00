// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadRegistry reads and parses the template registry file.
func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Lookup returns the template with the given ID, or nil when absent.
func (r *TemplateRegistry) Lookup(id string) *Template {
	for i := range r.Templates {
		if r.Templates[i].ID == id {
			return &r.Templates[i]
		}
	}
	return nil
}

func (r *TemplateRegistry) validate() error {
	seen := make(map[string]bool, len(r.Templates))
	for _, t := range r.Templates {
		if t.ID == "" {
			return fmt.Errorf("registry contains a template with no id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		if len(t.Channels) == 0 {
			return fmt.Errorf("template %q declares no channels", t.ID)
		}
		for _, c := range t.Channels {
			switch c {
			case "email":
				if t.EmailBody == "" || t.Subject == "" {
					return fmt.Errorf("template %q declares email but lacks subject or body", t.ID)
				}
			case "sms":
				if t.SMSBody == "" {
					return fmt.Errorf("template %q declares sms but lacks a body", t.ID)
				}
			default:
				return fmt.Errorf("template %q declares unknown channel %q", t.ID, c)
			}
		}
	}
	return nil
}
