package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/config"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type FieldErrors map[string][]string

func (e FieldErrors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

var tagMessages = map[string]string{
	"required":  "Campo requerido",
	"email":     "Formato de email inválido",
	"min":       "Valor demasiado corto o pequeño",
	"max":       "Valor demasiado largo o grande",
	"oneof":     "Valor no permitido",
	"gte":       "Valor demasiado pequeño",
	"lte":       "Valor demasiado grande",
	"gt":        "Debe ser mayor",
	"latitude":  "Latitud inválida",
	"longitude": "Longitud inválida",
	"alphanum":  "Solo letras y números",
	"dive":      "Elemento inválido",
}

func fieldErrors(err error) FieldErrors {
	out := FieldErrors{}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		out.Add("_", err.Error())
		return out
	}
	for _, ve := range ves {
		msg, ok := tagMessages[ve.Tag()]
		if !ok {
			msg = "Valor inválido (" + ve.Tag() + ")"
		}
		out.Add(ve.Field(), msg)
	}
	return out
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.Validation("Cuerpo de la solicitud inválido")
	}
	return check(req)
}

func check(req any) error {
	if err := validate.Struct(req); err != nil {
		return apperr.InvalidFields("Error de validación", fieldErrors(err))
	}
	return nil
}

func ok(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}

// ErrorHandler renders typed errors as the JSON envelope every handler uses.
// Internal causes are logged, never returned.
func ErrorHandler(logger logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": fe.Message})
		}

		status := apperr.HTTPStatus(err)
		if status >= fiber.StatusInternalServerError {
			config.LogError(logger, "http", c.Method()+" "+c.Path(), "request failed", nil, err)
		}
		body := fiber.Map{"success": false, "message": apperr.PublicMessage(err)}
		if fields := apperr.FieldsOf(err); len(fields) > 0 {
			body["errors"] = fields
		}
		return c.Status(status).JSON(body)
	}
}
