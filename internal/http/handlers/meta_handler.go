package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/http/dto"
	"github.com/pet-rehoming/backend/internal/models"
)

type MetaHandler struct {
	cfg *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{cfg: cfg}
}

type MetaOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type FeeTerms struct {
	PlatformFeeBPS int    `json:"platform_fee_bps"`
	Currency       string `json:"currency"`
}

var predefinedSpecies = []MetaOption{
	{ID: "dog", Label: "Dog"},
	{ID: "cat", Label: "Cat"},
	{ID: "rabbit", Label: "Rabbit"},
	{ID: "bird", Label: "Bird"},
	{ID: "rodent", Label: "Hamster, Guinea Pig & Rodents"},
	{ID: "reptile", Label: "Reptile"},
	{ID: "fish", Label: "Fish"},
	{ID: "horse", Label: "Horse"},
	{ID: "other", Label: "Other"},
}

var adoptionTypes = []MetaOption{
	{ID: string(models.AdoptionTypeFree), Label: "Free adoption"},
	{ID: string(models.AdoptionTypePaid), Label: "Adoption fee held in escrow"},
}

func (h *MetaHandler) GetSpecies(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedSpecies})
}

func (h *MetaHandler) GetAdoptionTypes(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: adoptionTypes})
}

func (h *MetaHandler) GetFees(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: FeeTerms{
		PlatformFeeBPS: h.cfg.PlatformFeeBPS,
		Currency:       h.cfg.Currency,
	}})
}
