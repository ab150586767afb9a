// internal/app/features/users/image.go
package users

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/asigbo/portal/internal/app/system/apierr"
	"github.com/asigbo/portal/internal/app/system/auth"
	"github.com/asigbo/portal/internal/app/system/httpjson"
	"github.com/asigbo/portal/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const maxImageBytes = 5 << 20 // 5 MiB

// imageKey is deterministic per user, so replacing an image overwrites the
// previous file in place.
func imageKey(id primitive.ObjectID) string {
	return fmt.Sprintf("images/users/%s", id.Hex())
}

// HandlePutImage handles PUT /user/{userID}/image (self or admin) with a
// multipart "image" part. The has_image flag is mirrored into snapshots.
func (h *Handler) HandlePutImage(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if id != current.ID && !current.IsAdmin() {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to change this image"))
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("a multipart image upload is required"))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		httpjson.Error(w, h.Log, apierr.BadRequest("the image file is required"))
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Storage.Put(ctx, imageKey(id), file); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Users.SetHasImage(ctx, id, true); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Propagator.UserChanged(ctx, user.Snapshot()); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]bool{"hasImage": true})
}

// HandleGetImage handles GET /user/{userID}/image and streams the stored
// file.
func (h *Handler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rc, err := h.Storage.Open(ctx, imageKey(id))
	if err != nil {
		httpjson.Error(w, h.Log, apierr.NotFound("the user has no profile image").Wrap(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Error("streaming profile image failed",
			zap.String("user_id", id.Hex()), zap.Error(err))
	}
}

// HandleDeleteImage handles DELETE /user/{userID}/image (self or admin).
func (h *Handler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.CurrentUser(r)
	id, err := pathUserID(r)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if id != current.ID && !current.IsAdmin() {
		httpjson.Error(w, h.Log, apierr.Forbidden("you do not have permission to change this image"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Storage.Delete(ctx, imageKey(id)); err != nil {
		h.Log.Error("deleting profile image file failed",
			zap.String("user_id", id.Hex()), zap.Error(err))
	}
	if err := h.Users.SetHasImage(ctx, id, false); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}

	user, err := h.Users.GetByID(ctx, id)
	if err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	if err := h.Propagator.UserChanged(ctx, user.Snapshot()); err != nil {
		httpjson.Error(w, h.Log, err)
		return
	}
	httpjson.OK(w, map[string]bool{"hasImage": false})
}
