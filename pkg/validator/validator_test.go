package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Title string    `validate:"required,min=3"`
	Date  time.Time `validate:"future"`
	Seats int       `validate:"positive"`
	User  int64     `validate:"positive64"`
}

func valid() sample {
	return sample{
		Title: "Go workshop",
		Date:  time.Now().Add(time.Hour),
		Seats: 10,
		User:  1,
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, Validate(context.Background(), valid()))
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*sample)
	}{
		{"missing title", func(s *sample) { s.Title = "" }},
		{"short title", func(s *sample) { s.Title = "ab" }},
		{"past date", func(s *sample) { s.Date = time.Now().Add(-time.Hour) }},
		{"zero seats", func(s *sample) { s.Seats = 0 }},
		{"negative user", func(s *sample) { s.User = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := valid()
			tc.mutate(&s)
			assert.Error(t, Validate(context.Background(), s))
		})
	}
}
