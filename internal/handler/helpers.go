package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var errMissingParam = errors.New("missing path parameter")

func pathParam(c *fiber.Ctx, name string) (string, error) {
	value := strings.TrimSpace(c.Params(name))
	if value == "" {
		return "", errMissingParam
	}

	return value, nil
}
