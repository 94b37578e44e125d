package cars

import (
	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

func (h *Handlers) CreateCar(c *fiber.Ctx) error {
	var input CreateCarInput
	if err := c.BodyParser(&input); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	car, err := h.Service.Create(c.Context(), input)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Car created", car, nil)
}

func (h *Handlers) ListCars(c *fiber.Ctx) error {
	cars, err := h.Service.List(c.Context())
	if err != nil {
		return err
	}
	return response.Success(c, "Cars", cars, nil)
}

func (h *Handlers) GetCar(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.Error(c, "Invalid car id", fiber.StatusBadRequest, nil)
	}
	car, err := h.Service.GetByID(c.Context(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Car", car, nil)
}
