package handlers

import (
	"strings"
	"sync"

	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var registerOnce sync.Once

// registerValidators adds the lead and account rules used in binding tags to
// gin's validator engine.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		_ = v.RegisterValidation("notblank", validators.NotBlank)
		_ = v.RegisterValidation("leadsource", isLeadSource)
		_ = v.RegisterValidation("username", isUsername)
	})
}

// isLeadSource accepts any spelling that normalizes to a member of the enumeration.
func isLeadSource(fl validator.FieldLevel) bool {
	return lead.IsKnownSourceType(lead.NormalizeSourceType(fl.Field().String()))
}

func isUsername(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), " \t\r\n/\\")
}
