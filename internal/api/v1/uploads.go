package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/storage"
)

type CreateUploadInput struct {
	Body struct {
		Kind        string     `json:"kind" enum:"avatar,post,tenant" doc:"What the image is attached to"`
		ContentType string     `json:"content_type" minLength:"1" maxLength:"100" doc:"MIME type of the image"`
		TenantID    *uuid.UUID `json:"tenant_id,omitempty" doc:"Restaurant for tenant images uploaded by an admin"`
	}
}

type UploadOutput struct {
	Body *storage.Upload
}

// RegisterUploadRoutes mounts the presigned upload endpoint. uploader may be
// nil when object storage is not configured.
func RegisterUploadRoutes(api huma.API, uploader Uploader) {
	huma.Register(api, huma.Operation{
		OperationID: "create-upload",
		Method:      http.MethodPost,
		Path:        "/uploads",
		Summary:     "Get a presigned URL to upload an image",
		Tags:        []string{"Uploads"},
	}, func(ctx context.Context, input *CreateUploadInput) (*UploadOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if uploader == nil {
			return nil, huma.Error503ServiceUnavailable("uploads are not configured")
		}

		kind := storage.Kind(input.Body.Kind)
		owner := p.UserID
		if kind == storage.KindTenant {
			switch {
			case input.Body.TenantID != nil && p.ManagesTenant(*input.Body.TenantID):
				owner = *input.Body.TenantID
			case input.Body.TenantID == nil && p.TenantID != nil && p.UserType.IsStaff():
				owner = *p.TenantID
			default:
				return nil, huma.Error403Forbidden("You can only upload images for your own restaurant.")
			}
		}

		key, err := storage.ObjectKey(kind, owner, input.Body.ContentType)
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedType) {
				return nil, huma.Error400BadRequest("only image uploads are accepted")
			}
			return nil, huma.Error500InternalServerError("failed to build object key", err)
		}

		up, err := uploader.PresignUpload(ctx, key, input.Body.ContentType)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to presign upload", err)
		}
		return &UploadOutput{Body: up}, nil
	})
}
