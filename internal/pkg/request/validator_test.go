package request

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type windowBody struct {
	Start    string `binding:"required,hhmm"`
	Timezone string `binding:"omitempty,timezone"`
}

func TestRegisterValidators(t *testing.T) {
	RegisterValidators()
	RegisterValidators() // second call is a no-op

	cases := []struct {
		name string
		body windowBody
		ok   bool
	}{
		{"valid", windowBody{Start: "09:30", Timezone: "America/New_York"}, true},
		{"no zone", windowBody{Start: "23:59"}, true},
		{"hour out of range", windowBody{Start: "24:00"}, false},
		{"single digit hour", windowBody{Start: "9:30"}, false},
		{"unknown zone", windowBody{Start: "09:00", Timezone: "Mars/Olympus"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tc.body)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
