package apiutil

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// docCodeRe matches register codes such as "QM-014" or "SOP-007.2".
var docCodeRe = regexp.MustCompile(`^[A-Z]{2,8}-[0-9]{1,4}(\.[0-9]{1,3})?$`)

// RegisterValidators installs custom validation tags on gin's binding
// validator. Call once at startup.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("doc_code", func(fl validator.FieldLevel) bool {
			return docCodeRe.MatchString(fl.Field().String())
		})
	}
}

// ValidDocCode reports whether s is a well-formed register code.
func ValidDocCode(s string) bool {
	return docCodeRe.MatchString(s)
}
