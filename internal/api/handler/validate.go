package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidator() (*validator.Validate, error) {
	vld := validator.New(validator.WithRequiredStructEnabled())
	vld.RegisterTagNameFunc(jsonFieldName)

	// Sign checks are left to the domain so they report its error codes.
	if err := vld.RegisterValidation("decimal_amount", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	}); err != nil {
		return nil, fmt.Errorf("register decimal_amount: %w", err)
	}
	return vld, nil
}

// FieldProblem is one rejected request field.
type FieldProblem struct {
	Field string `json:"field"`
	Rule  string `json:"error"`
	Param string `json:"param,omitempty"`
}

// fieldProblems is the error returned by validateStruct.
type fieldProblems []FieldProblem

func (p fieldProblems) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(p))
}

func validateStruct(payload any) error {
	validateOnce.Do(func() {
		validate, errValidate = initValidator()
	})
	if errValidate != nil {
		return errValidate
	}
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(fieldProblems, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldProblem{Field: fieldPath(fe), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// fieldPath drops the root struct name from the namespace, e.g. "partner_account.identifier".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
