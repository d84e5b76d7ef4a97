// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/skillang/leadg-crm-backend-sub001/internal/model"
)

// RenderTemplate substitutes {placeholder} tokens with the given values.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "<unknown>"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// RenderForLead personalizes a template body for one lead.
func RenderForLead(template string, lead *model.Lead) string {
	return RenderTemplate(template, map[string]string{
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"email":      lead.Email,
		"phone":      lead.Phone,
		"stage":      lead.Stage,
		"source":     lead.Source,
	})
}
