package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/motion-controller/pkg/log"
	"github.com/open-teleop/motion-controller/services"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	configService services.TuningConfigService
	logger        customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(configService services.TuningConfigService, logger customlog.Logger) *ConfigHandler {
	if configService == nil {
		panic("ConfigService cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		configService: configService,
		logger:        logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints on router.
// Middleware runs before every configuration handler.
func RegisterConfigRoutes(router fiber.Router, configService services.TuningConfigService, logger customlog.Logger, middleware ...fiber.Handler) {
	h := NewConfigHandler(configService, logger)

	apiGroup := router.Group("/api/v1/config", middleware...)

	// Whole tuning file as YAML
	apiGroup.Get("/tuning", h.handleGetTuningConfig)
	apiGroup.Put("/tuning", h.handleUpdateTuningConfig)

	// Just the speeds, as JSON
	apiGroup.Get("/tuning/speeds", h.handleGetSpeeds)
	apiGroup.Patch("/tuning/speeds", h.handlePatchSpeeds)

	logger.Infof("Registered tuning configuration API endpoints under /api/v1/config")
}

// handleGetTuningConfig returns the tuning file as YAML.
func (h *ConfigHandler) handleGetTuningConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config/tuning")
	yamlData, err := h.configService.GetCurrentConfigYAML()
	if err != nil {
		h.logger.Errorf("Failed to get current tuning config YAML: %v", err)
		if h.configService.GetCurrentConfig() == nil {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{
				"error": "Tuning configuration not found or not yet set.",
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to retrieve configuration: %v", err),
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}

// handleUpdateTuningConfig replaces the tuning file with the YAML body.
func (h *ConfigHandler) handleUpdateTuningConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling PUT request for /api/v1/config/tuning")

	switch c.Get(fiber.HeaderContentType) {
	case "application/x-yaml", "application/yaml", "text/yaml":
	default:
		h.logger.Warnf("Received PUT request with unexpected Content-Type: %s", c.Get(fiber.HeaderContentType))
	}

	newConfigYAML := c.Body()
	if len(newConfigYAML) == 0 {
		h.logger.Errorf("Received empty body in PUT request for tuning config update.")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Request body cannot be empty.",
		})
	}

	if err := h.configService.UpdateConfig(newConfigYAML); err != nil {
		return h.updateError(c, err)
	}

	h.logger.Infof("Successfully processed PUT request to update tuning configuration.")
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Tuning configuration updated successfully.",
		"tuning":  h.configService.Speeds(),
	})
}

// handleGetSpeeds returns the speeds currently used by the capabilities.
func (h *ConfigHandler) handleGetSpeeds(c *fiber.Ctx) error {
	return c.JSON(h.configService.Speeds())
}

// handlePatchSpeeds changes one or both speeds.
func (h *ConfigHandler) handlePatchSpeeds(c *fiber.Ctx) error {
	var update SpeedsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Invalid request body: %v", err),
		})
	}
	if update.WalkSpeed == nil && update.YawSpeed == nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one of walk_speed or yaw_speed is required.",
		})
	}

	cfg, err := h.configService.UpdateSpeeds(update.WalkSpeed, update.YawSpeed)
	if err != nil {
		return h.updateError(c, err)
	}
	return c.JSON(fiber.Map{
		"config_id": cfg.ConfigID,
		"tuning":    cfg.Tuning,
	})
}

func (h *ConfigHandler) updateError(c *fiber.Ctx, err error) error {
	h.logger.Errorf("Failed to update tuning configuration: %v", err)
	if errors.Is(err, services.ErrInvalidConfig) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Configuration update failed: %v", err),
		})
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": fmt.Sprintf("Internal server error during configuration update: %v", err),
	})
}
