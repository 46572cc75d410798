package mapping_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
	"github.com/staffbridge/staffbridge/pkg/serrors"
)

func validConfig() mapping.FieldMappingConfig {
	return mapping.FieldMappingConfig{
		SystemName:   "workday",
		SourceFields: []string{"First Name", "Last Name", "Work Email", "Dept", "Badge"},
		FieldMapping: map[string]string{
			"First Name": mapping.FieldFirstName,
			"Last Name":  mapping.FieldLastName,
			"Work Email": mapping.FieldEmail,
			"Dept":       mapping.FieldDepartment,
			"Badge":      "badge_number",
		},
		RequiredFields: []string{mapping.FieldFirstName, mapping.FieldLastName, mapping.FieldEmail},
	}
}

func TestFieldMappingConfig_Validate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("mapping source must be declared", func(t *testing.T) {
		cfg := validConfig()
		cfg.FieldMapping["Phantom"] = mapping.FieldHireDate
		require.Error(t, cfg.Validate())
	})

	t.Run("email must be mapped", func(t *testing.T) {
		cfg := validConfig()
		delete(cfg.FieldMapping, "Work Email")
		cfg.RequiredFields = []string{mapping.FieldFirstName}

		err := cfg.Validate()
		require.Error(t, err)

		var coded *serrors.Base
		require.True(t, errors.As(err, &coded))
		require.Equal(t, mapping.ErrInvalidConfig, coded.Code)
	})

	t.Run("required field must be a mapping target", func(t *testing.T) {
		cfg := validConfig()
		cfg.RequiredFields = append(cfg.RequiredFields, mapping.FieldHireDate)
		require.Error(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	cfg := validConfig()

	t.Run("maps and trims values", func(t *testing.T) {
		record, err := mapping.Validate(mapping.RawRow{
			"First Name": "  Jane ",
			"Last Name":  "Doe",
			"Work Email": " jane.doe@example.com ",
			"Dept":       "Engineering",
			"Badge":      "B-1042",
		}, cfg)
		require.NoError(t, err)
		require.Equal(t, "Jane", record.FirstName)
		require.Equal(t, "Doe", record.LastName)
		require.Equal(t, "jane.doe@example.com", record.Email)
		require.Equal(t, "Engineering", record.Department)
		require.Equal(t, map[string]string{"badge_number": "B-1042"}, record.Custom)
	})

	t.Run("collects all missing required fields", func(t *testing.T) {
		_, err := mapping.Validate(mapping.RawRow{
			"First Name": "   ",
			"Dept":       "Sales",
		}, cfg)
		require.Error(t, err)

		var missing *mapping.MissingFieldsError
		require.True(t, errors.As(err, &missing))
		require.Equal(t, []string{mapping.FieldEmail, mapping.FieldFirstName, mapping.FieldLastName}, missing.Fields)
	})

	t.Run("whitespace-only value counts as absent", func(t *testing.T) {
		_, err := mapping.Validate(mapping.RawRow{
			"First Name": "Jane",
			"Last Name":  "Doe",
			"Work Email": "\t  ",
		}, cfg)
		var missing *mapping.MissingFieldsError
		require.True(t, errors.As(err, &missing))
		require.Equal(t, []string{mapping.FieldEmail}, missing.Fields)
	})

	t.Run("unmapped columns are ignored", func(t *testing.T) {
		record, err := mapping.Validate(mapping.RawRow{
			"First Name": "Jane",
			"Last Name":  "Doe",
			"Work Email": "jane@example.com",
			"Noise":      "ignored",
		}, cfg)
		require.NoError(t, err)
		require.Empty(t, record.Custom)
	})
}
