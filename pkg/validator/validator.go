package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var mrNumber = regexp.MustCompile(`^MR-\d{4}-\d{4}$`)

// MRNumber validates the MR-YYYY-NNNN medical record number format.
func MRNumber(fl validator.FieldLevel) bool {
	return mrNumber.MatchString(fl.Field().String())
}

// Register installs the custom tags on v and reports fields by their json
// names.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("mrnumber", MRNumber); err != nil {
		return fmt.Errorf("failed to register mrnumber validator: %w", err)
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return nil
}

// RegisterGin installs the custom tags on gin's binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// New returns a standalone validator that reads the same `binding` tags gin
// does, for validating requests that do not come through HTTP.
func New() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	_ = Register(v)
	return v
}
