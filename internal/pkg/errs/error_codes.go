/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrMalformedEvent indicates that an inbound socket event was missing required fields.
	ErrMalformedEvent = 1008
)

// 2xxx: Room and Content Business Logic Errors
const (
	// ErrRoomNotFound indicates that the room targeted by the operation does not exist.
	ErrRoomNotFound = 2101

	// ErrRoomNameExists indicates that the attempted room name for creation already exists.
	ErrRoomNameExists = 2102

	// ErrRoomPrivate indicates a join attempt on a private room by a non-member.
	ErrRoomPrivate = 2103

	// ErrMessageContentTooLong indicates that the message body exceeded the maximum length limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageRateLimited indicates the sender exceeded the per-identity message rate.
	ErrMessageRateLimited = 2202

	// ErrSendFailed indicates a message could not be created in the store.
	ErrSendFailed = 2203

	// ErrFileNotFound indicates no stored blob exists under the requested key.
	ErrFileNotFound = 2301
)

// 3xxx: Moderation and Permission Errors
const (
	// ErrBannedFromRoom indicates the identity is banned from the room it tried to join.
	ErrBannedFromRoom = 3001

	// ErrPermissionDenied indicates the actor lacks the role required for a moderation action.
	ErrPermissionDenied = 3002

	// ErrOwnerOnly indicates an action reserved for the room creator was attempted by someone else.
	ErrOwnerOnly = 3003

	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the persistence collaborator could not be reached.
	// The operation is retryable once the store recovers.
	ErrStoreUnavailable = 5001

	// ErrFileStorageFailed indicates the upload collaborator rejected or failed an operation.
	ErrFileStorageFailed = 5002
)
