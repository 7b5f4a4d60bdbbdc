package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/zhangqx2025/video-progress-service/internal/models"
)

// Validator wraps struct-tag validation with the custom domain validators
// registered once at construction.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate validates struct tags and returns the shared ValidationErrors
// type when any field fails.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if ve := ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("playback_status", validatePlaybackStatus)
	validate.RegisterValidation("playback_event_type", validatePlaybackEventType)
	validate.RegisterValidation("resource_type", validateResourceType)
	validate.RegisterValidation("user_role", validateUserRole)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validatePlaybackStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.PlaybackStatus{
		models.PlaybackPlaying,
		models.PlaybackPaused,
		models.PlaybackEnded,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

func validatePlaybackEventType(fl validator.FieldLevel) bool {
	validTypes := []models.PlaybackEventType{
		models.EventPlay,
		models.EventProgress,
		models.EventSeek,
		models.EventPause,
		models.EventEnded,
		models.EventReplay,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateResourceType(fl validator.FieldLevel) bool {
	validTypes := []models.ResourceType{
		models.ResourceVideo,
		models.ResourceDocument,
		models.ResourceLink,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleTeacher,
		models.RoleSchoolAdmin,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, validRole := range validRoles {
		if string(validRole) == value {
			return true
		}
	}
	return false
}
