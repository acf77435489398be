/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrMalformedEvent:        {Code: ErrMalformedEvent, Message: "Malformed event payload."},

	// 2xxx: Room and Content Business Logic Errors
	ErrRoomNotFound:          {Code: ErrRoomNotFound, Message: "Room not found."},
	ErrRoomNameExists:        {Code: ErrRoomNameExists, Message: "A room with this name already exists."},
	ErrRoomPrivate:           {Code: ErrRoomPrivate, Message: "This room is private."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageRateLimited:    {Code: ErrMessageRateLimited, Message: "Rate limit exceeded. Please slow down."},
	ErrSendFailed:            {Code: ErrSendFailed, Message: "Failed to send message."},
	ErrFileNotFound:          {Code: ErrFileNotFound, Message: "File not found.", Status: http.StatusNotFound},

	// 3xxx: Moderation and Permission Errors
	ErrBannedFromRoom:   {Code: ErrBannedFromRoom, Message: "You are banned from this room."},
	ErrPermissionDenied: {Code: ErrPermissionDenied, Message: "You do not have permission to perform this action."},
	ErrOwnerOnly:        {Code: ErrOwnerOnly, Message: "Only the room owner can perform this action."},
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:           {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable:  {Code: ErrStoreUnavailable, Message: "Service temporarily unavailable. Please retry.", Status: http.StatusServiceUnavailable},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
}
