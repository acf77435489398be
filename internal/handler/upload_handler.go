package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// HandleUploadFile stores a multipart file blob and returns its reference.
// The client then attaches the reference to an uploadFile event on its socket;
// the blob itself never travels over the websocket.
func HandleUploadFile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFormParseFailed))
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")
		if customErr := chat.ValidateFileSize(header.Size); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := chat.ValidateFileType(header.Filename, mimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileID, err := randx.FileKey()
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		ext := strings.ToLower(filepath.Ext(header.Filename))
		key := fmt.Sprintf("uploads/%s%s", fileID, ext)

		uploaded, err := deps.StorageService.Upload(r.Context(), key, mimeType, header.Size, file)
		if err != nil {
			logx.Error(err, "file upload failed", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, store.FileRef{
			URL:          uploaded.URL,
			Filename:     uploaded.Key,
			OriginalName: header.Filename,
			MimeType:     uploaded.MimeType,
			Size:         uploaded.Size,
		})
	}
}

// HandlePresignDownloadURL redirects to a time-limited download URL for a
// stored blob.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if deps.StorageService == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" || !strings.HasPrefix(fileKey, "uploads/") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.StorageService.GetObjectMetadata(r.Context(), fileKey); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileNotFound))
			return
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), fileKey, chat.PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
