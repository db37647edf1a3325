package request

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/bookease/bookease-backend/internal/timeutil"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request DTOs:
//
//	hhmm      a wall-clock reading "HH:mm"
//	timezone  an IANA zone name
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := timeutil.ParseTimeOfDay(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("timezone", func(fl validator.FieldLevel) bool {
			_, err := timeutil.LoadLocation(fl.Field().String())
			return err == nil
		})
	})
}
