package handlers

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"nextsteps-go/internal/models"
)

const reminderEmailTag = "reminder_email"

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators installs the reminder_email binding tag on gin's
// validator. It must run before any handler binds a ReminderRequest.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		registerErr = v.RegisterValidation(reminderEmailTag, func(fl validator.FieldLevel) bool {
			return models.ValidateEmail(fl.Field().String()) == nil
		})
	})
	return registerErr
}

// bindErrorMessage maps a failed ReminderRequest bind onto the endpoint's
// user-facing text. Bodies that do not decode count as a missing email.
func bindErrorMessage(err error, req *models.ReminderRequest) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return models.EmailErrorMessage(models.ValidateEmail(req.Email))
	}
	return models.EmailErrorMessage(models.ErrEmailRequired)
}
