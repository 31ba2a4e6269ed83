package storage

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Kind groups uploads by what they are attached to.
type Kind string

const (
	KindAvatar Kind = "avatar"
	KindPost   Kind = "post"
	KindTenant Kind = "tenant"
)

var ErrUnsupportedType = errors.New("storage: only image uploads are accepted")

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
}

// ObjectKey builds "<kind>/<owner>/<random><ext>" for an image content type.
func ObjectKey(kind Kind, owner uuid.UUID, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext, ok := imageExt[ct]
	if !ok {
		return "", ErrUnsupportedType
	}
	return string(kind) + "/" + owner.String() + "/" + uuid.NewString() + ext, nil
}
