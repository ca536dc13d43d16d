package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/http/dto"
	"github.com/pet-rehoming/backend/internal/middleware"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/services"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

type PetHandler struct {
	listings *services.ListingService
	log      *zap.Logger
}

func NewPetHandler(listings *services.ListingService, log *zap.Logger) *PetHandler {
	return &PetHandler{listings: listings, log: log}
}

func petInput(req dto.PetRequest) services.PetInput {
	return services.PetInput{
		Name:         strings.TrimSpace(req.Name),
		Species:      strings.ToLower(strings.TrimSpace(req.Species)),
		Breed:        req.Breed,
		AgeMonths:    req.AgeMonths,
		Description:  req.Description,
		City:         req.City,
		AdoptionType: models.AdoptionType(req.AdoptionType),
		Price:        req.Price,
	}
}

func (h *PetHandler) CreatePet(c *fiber.Ctx) error {
	var req dto.PetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	pet, err := h.listings.Create(c.UserContext(), middleware.GetUserID(c), petInput(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: pet})
}

func (h *PetHandler) UpdatePet(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.PetRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	pet, err := h.listings.Update(c.UserContext(), petID, middleware.GetUserID(c), petInput(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pet})
}

func (h *PetHandler) DeletePet(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.listings.Delete(c.UserContext(), petID, middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PetHandler) GetPet(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	pet, err := h.listings.Get(c.UserContext(), petID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pet})
}

func (h *PetHandler) ListPets(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	f := store.PetFilter{Limit: limit, Offset: offset}
	if v := c.Query("species"); v != "" {
		species := strings.ToLower(v)
		f.Species = &species
	}
	if v := c.Query("adoption_type"); v != "" {
		t := models.AdoptionType(v)
		if !t.IsValid() {
			return badRequest(c, "invalid_adoption_type", "adoption_type must be free or paid")
		}
		f.AdoptionType = &t
	}

	pets, err := h.listings.ListAvailable(c.UserContext(), f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list(pets, limit, offset))
}

func (h *PetHandler) MyPets(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	pets, err := h.listings.ListByOwner(c.UserContext(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list(pets, limit, offset))
}

func (h *PetHandler) GetPetEvents(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	logs, err := h.listings.History(c.UserContext(), petID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
