package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AvatarSaver writes uploaded avatar images under <dir>/avatars with
// generated names, so nothing from the client ever reaches the filesystem
// path.
type AvatarSaver struct {
	dir      string
	maxBytes int64
}

var allowedAvatarExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

func NewAvatarSaver(dir string, maxBytes int64) *AvatarSaver {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}

	return &AvatarSaver{dir: dir, maxBytes: maxBytes}
}

// Save stores the request's "avatar" file if one was uploaded and returns the
// public path ("/uploads/avatars/<name>"). No file is not an error; the
// returned path is just empty.
func (a *AvatarSaver) Save(ctx *gin.Context) (string, error) {
	file, err := ctx.FormFile("avatar")

	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}

		return "", errors.New("could not read avatar upload")
	}

	if file.Size > a.maxBytes {
		return "", errors.New("avatar exceeds the maximum allowed size")
	}

	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image/") {
		return "", errors.New("avatar must be an image")
	}

	ext := sanitizeExt(file.Filename)

	if _, ok := allowedAvatarExts[ext]; !ok {
		return "", errors.New("avatar file extension is not allowed")
	}

	base := filepath.Join(a.dir, "avatars")

	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", errors.New("could not store avatar")
	}

	name := "avatar-" + uuid.NewString() + ext

	if err := ctx.SaveUploadedFile(file, filepath.Join(base, name)); err != nil {
		return "", errors.New("could not store avatar")
	}

	return "/uploads/avatars/" + name, nil
}

// Remove deletes a stored avatar given the public path Save returned. Used
// to roll back when the record write fails after the file landed on disk.
func (a *AvatarSaver) Remove(publicPath string) {
	name := filepath.Base(publicPath)

	if name == "." || name == "/" || name == "" {
		return
	}

	_ = os.Remove(filepath.Join(a.dir, "avatars", name))
}

// sanitizeExt lowercases the extension and strips anything that is not
// alphanumeric or a dot.
func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	var b strings.Builder

	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}
