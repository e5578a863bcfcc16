package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/watchgraph/internal/schema"
)

// v is shared by all checks; validator.Validate caches struct metadata and is
// safe for concurrent use.
var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names rather than Go field names.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(val, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(val, "status", func(fl validator.FieldLevel) bool {
		return schema.IsValidStatus(schema.Status(fl.Field().String()))
	})
	mustRegister(val, "riskcategory", func(fl validator.FieldLevel) bool {
		return schema.IsValidRiskCategory(schema.RiskCategory(fl.Field().String()))
	})
	return val
}

func mustRegister(val *validator.Validate, tag string, fn validator.Func) {
	if err := val.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validator: %v", tag, err))
	}
}

// System checks a registration payload at the boundary: name and organization
// must be non-blank, risk_category one of the four tiers and owner_email, when
// present, a valid address.
func System(s schema.System) error {
	return describe("system", v.Struct(s))
}

// Mapping checks that a mapping has its identifiers and a recognised status.
func Mapping(m schema.Mapping) error {
	return describe("mapping", v.Struct(m))
}

// StatusUpdate checks a status mutation payload.
func StatusUpdate(u schema.StatusUpdate) error {
	return describe("status update", v.Struct(u))
}

// ParseSystems decodes a JSON array of systems and validates each one.
func ParseSystems(raw []byte) ([]schema.System, error) {
	var systems []schema.System
	if err := json.Unmarshal(raw, &systems); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}
	for i, s := range systems {
		if s.ID == "" {
			return nil, fmt.Errorf("system[%d]: id is required", i)
		}
		if err := System(s); err != nil {
			return nil, fmt.Errorf("system[%d]: %w", i, err)
		}
	}
	return systems, nil
}

// ParseMappings decodes a JSON array of mappings. Identifiers are required;
// statuses are NOT checked here so that callers can route unrecognised ones
// through compliance.Partition or ComputeSystem and surface them explicitly.
func ParseMappings(raw []byte) ([]schema.Mapping, error) {
	var mappings []schema.Mapping
	if err := json.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("JSON parse failed: %w", err)
	}
	for i, m := range mappings {
		if err := identifiers(m); err != nil {
			return nil, fmt.Errorf("mapping[%d]: %w", i, err)
		}
	}
	return mappings, nil
}

func identifiers(m schema.Mapping) error {
	if m.MappingID == "" {
		return errors.New("mapping_id is required")
	}
	if m.SystemID == "" {
		return errors.New("system_id is required")
	}
	return nil
}

// describe flattens validator errors into a single readable error.
func describe(what string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%s: %w", what, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("invalid %s: %s", what, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "status":
		return fmt.Sprintf("%s %q is not one of not_started, in_progress, completed, non_compliant", fe.Field(), fe.Value())
	case "riskcategory":
		return fmt.Sprintf("%s %q is not one of unacceptable, high, limited, minimal", fe.Field(), fe.Value())
	case "email":
		return fmt.Sprintf("%s %q is not a valid email address", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
