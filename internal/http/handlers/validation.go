// README: Custom binding tags for booking enums and duration units.
package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"drivebook/internal/modules/booking"
	"drivebook/internal/types"
)

// RegisterValidators installs the enum tags on gin's validator. Call once at startup.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}
	tags := map[string]func(string) error{
		"duration_unit":  func(s string) error { _, err := types.ParseUnit(s); return err },
		"booking_kind":   func(s string) error { _, err := booking.ParseKind(s); return err },
		"payment_method": func(s string) error { _, err := booking.ParsePaymentMethod(s); return err },
		"payment_status": func(s string) error { _, err := booking.ParsePaymentStatus(s); return err },
		"booking_status": func(s string) error { _, err := booking.ParseStatus(s); return err },
	}
	for tag, parse := range tags {
		parse := parse // per-iteration copy; module targets go 1.21 loop semantics
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return parse(fl.Field().String()) == nil
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
