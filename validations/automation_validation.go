package validations

import (
	"context"
	"strings"

	"github.com/AzielCF/az-social/automation/domain"
	pkgError "github.com/AzielCF/az-social/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func ValidateSchedulePost(ctx context.Context, request domain.SchedulePostRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.MediaURL, validation.Required, is.URL),
		validation.Field(&request.MediaType, validation.Required, validation.In(domain.MediaImage, domain.MediaVideo, domain.MediaReels)),
		validation.Field(&request.Caption, validation.Length(0, 2200)),
		validation.Field(&request.Title, validation.Length(0, 100)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateConnectAccount(ctx context.Context, request domain.ConnectAccountRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserRef, validation.Required),
		validation.Field(&request.Platform, validation.Required, validation.In(domain.PlatformInstagram, domain.PlatformYouTube)),
		validation.Field(&request.PlatformUserID, validation.Required),
		validation.Field(&request.AccessToken, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func ValidateAutoReplySetting(ctx context.Context, request domain.AutoReplySettingRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.Surface, validation.Required, validation.In(domain.SurfaceComments, domain.SurfaceDMs)),
		validation.Field(&request.Mode, validation.In(domain.ModeReplyOnly, domain.ModeReplyAndModerate, domain.ModeAIPersona)),
		validation.Field(&request.StaticMessage, validation.Length(0, 1000)),
		validation.Field(&request.HideNotice, validation.Length(0, 1000)),
		validation.Field(&request.MinSeconds, validation.Min(0)),
		validation.Field(&request.MaxSeconds, validation.Min(request.MinSeconds).Error("must be no less than min_seconds")),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if request.FixedSeconds != nil && *request.FixedSeconds < 0 {
		return pkgError.ValidationError("fixed_seconds: must be no less than 0.")
	}
	return nil
}

func ValidatePersona(ctx context.Context, request domain.PersonaRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.AccountID, validation.Required),
		validation.Field(&request.DisplayName, validation.Required, validation.Length(1, 80)),
		validation.Field(&request.Tone, validation.Length(0, 200)),
		validation.Field(&request.StyleNotes, validation.Length(0, 2000)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if strings.TrimSpace(request.DisplayName) == "" {
		return pkgError.ValidationError("display_name: cannot be blank.")
	}
	return nil
}
