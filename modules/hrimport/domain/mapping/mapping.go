package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/staffbridge/staffbridge/pkg/serrors"
)

// ErrInvalidConfig is the code carried by every config validation
// failure, so API layers can map them without string matching.
const ErrInvalidConfig = "INVALID_MAPPING_CONFIG"

// Canonical field names a mapping may target. Any other target is kept
// as a custom field on the normalized record.
const (
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldEmail          = "email"
	FieldEmployeeNumber = "employee_number"
	FieldHireDate       = "hire_date"
	FieldDepartment     = "department"
)

var canonicalFields = map[string]struct{}{
	FieldFirstName:      {},
	FieldLastName:       {},
	FieldEmail:          {},
	FieldEmployeeNumber: {},
	FieldHireDate:       {},
	FieldDepartment:     {},
}

// RawRow is one record exactly as received from the source system,
// keyed by source column name.
type RawRow map[string]string

// FieldMappingConfig describes how rows from one source system map onto
// canonical fields. FieldMapping is source column -> target field;
// RequiredFields names target fields that must be non-empty after
// normalization.
type FieldMappingConfig struct {
	SystemName     string            `json:"system_name" validate:"required"`
	SourceFields   []string          `json:"source_fields" validate:"required,min=1"`
	FieldMapping   map[string]string `json:"field_mapping" validate:"required,min=1"`
	RequiredFields []string          `json:"required_fields"`
}

// Validate rejects configs that cannot produce resolvable records:
// every mapping source must be a declared source field, email must be
// mapped, and every required field must be a mapping target.
func (c FieldMappingConfig) Validate() error {
	declared := make(map[string]struct{}, len(c.SourceFields))
	for _, f := range c.SourceFields {
		declared[f] = struct{}{}
	}

	targets := make(map[string]struct{}, len(c.FieldMapping))
	for source, target := range c.FieldMapping {
		if _, ok := declared[source]; !ok {
			return serrors.NewError(
				ErrInvalidConfig,
				fmt.Sprintf("mapping source %q is not a declared source field", source),
				"declare every mapped column in source_fields",
			)
		}
		if target == "" {
			return serrors.NewError(
				ErrInvalidConfig,
				fmt.Sprintf("mapping source %q has an empty target", source),
				"",
			)
		}
		targets[target] = struct{}{}
	}

	if _, ok := targets[FieldEmail]; !ok {
		return serrors.NewError(
			ErrInvalidConfig,
			fmt.Sprintf("mapping must target %q: it is the identity key", FieldEmail),
			"",
		)
	}

	for _, required := range c.RequiredFields {
		if _, ok := targets[required]; !ok {
			return serrors.NewError(
				ErrInvalidConfig,
				fmt.Sprintf("required field %q is not a mapping target", required),
				"",
			)
		}
	}
	return nil
}

// NormalizedRecord is a row after mapping and trimming. Unmapped and
// empty values are absent. Custom holds targets outside the canonical
// set.
type NormalizedRecord struct {
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	Email          string            `json:"email,omitempty"`
	EmployeeNumber string            `json:"employee_number,omitempty"`
	HireDate       string            `json:"hire_date,omitempty"`
	Department     string            `json:"department,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
}

// MissingFieldsError reports every required field a row failed to
// provide, not just the first one found.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Validate applies the mapping to a raw row: values are trimmed,
// whitespace-only values are treated as absent, and all missing
// required fields are collected into a single error.
func Validate(row RawRow, config FieldMappingConfig) (*NormalizedRecord, error) {
	record := &NormalizedRecord{}
	present := make(map[string]struct{})

	for source, target := range config.FieldMapping {
		value := strings.TrimSpace(row[source])
		if value == "" {
			continue
		}
		present[target] = struct{}{}
		switch target {
		case FieldFirstName:
			record.FirstName = value
		case FieldLastName:
			record.LastName = value
		case FieldEmail:
			record.Email = value
		case FieldEmployeeNumber:
			record.EmployeeNumber = value
		case FieldHireDate:
			record.HireDate = value
		case FieldDepartment:
			record.Department = value
		default:
			if record.Custom == nil {
				record.Custom = make(map[string]string)
			}
			record.Custom[target] = value
		}
	}

	var missing []string
	for _, required := range config.RequiredFields {
		if _, ok := present[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingFieldsError{Fields: missing}
	}
	return record, nil
}

// IsCanonical reports whether name is one of the canonical field names.
func IsCanonical(name string) bool {
	_, ok := canonicalFields[name]
	return ok
}
