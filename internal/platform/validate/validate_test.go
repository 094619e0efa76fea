package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
)

type sample struct {
	ChildName string `json:"child_name" validate:"required,max=10"`
	Time      string `json:"preferred_time" validate:"required,clock"`
	Date      string `json:"preferred_date" validate:"required,datetime=2006-01-02"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
}

func valid() sample {
	return sample{ChildName: "Amani", Time: "09:30", Date: "2026-11-02", Rating: 5}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, New().Validate(valid()))
}

func TestValidate_ReportsJSONFieldName(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*sample)
		field string
		msg   string
	}{
		{"missing name", func(s *sample) { s.ChildName = "" }, "child_name", "child_name is required"},
		{"long name", func(s *sample) { s.ChildName = "Abcdefghijk" }, "child_name", "child_name must be at most 10 characters"},
		{"bad clock", func(s *sample) { s.Time = "24:00" }, "preferred_time", "preferred_time must be a time in HH:MM format"},
		{"bad date", func(s *sample) { s.Date = "02/11/2026" }, "preferred_date", "preferred_date must be a date in 2006-01-02 format"},
		{"rating low", func(s *sample) { s.Rating = 0 }, "rating", "rating must be at least 1"},
		{"rating high", func(s *sample) { s.Rating = 6 }, "rating", "rating must be at most 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mut(&s)
			err := New().Validate(s)
			require.Error(t, err)

			var de *apperr.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, apperr.CodeValidation, de.Code)
			assert.Equal(t, tt.field, de.Metadata["field"])
			assert.Equal(t, tt.msg, de.Message)
		})
	}
}

func TestIsClock(t *testing.T) {
	for _, s := range []string{"00:00", "09:05", "23:59"} {
		assert.True(t, IsClock(s), s)
	}
	for _, s := range []string{"", "9:05", "24:00", "12:60", "12:5", "noon"} {
		assert.False(t, IsClock(s), s)
	}
}
