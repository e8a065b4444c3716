package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenRevoked       ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrInstituteOnly     ErrCode = "INSTITUTE_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrNotExamOwner      ErrCode = "NOT_EXAM_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidContent ErrCode = "INVALID_EXAM_CONTENT"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrAlreadyDecided     ErrCode = "ALREADY_DECIDED"
	ErrNotApproved        ErrCode = "EXAM_NOT_APPROVED"
	ErrExamNotStarted     ErrCode = "EXAM_NOT_STARTED"
	ErrAlreadyAttempted   ErrCode = "ALREADY_ATTEMPTED"
	ErrNoActiveSession    ErrCode = "NO_ACTIVE_SESSION"
	ErrDeadlinePassed     ErrCode = "DEADLINE_PASSED"
	ErrResultsNotReleased ErrCode = "RESULTS_NOT_RELEASED"
	ErrIntegrity          ErrCode = "CONTENT_INTEGRITY_FAILURE"
	ErrCorruptContent     ErrCode = "CORRUPT_CONTENT"

	// ─── Upload ────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUpstreamUnavailable ErrCode = "UPSTREAM_UNAVAILABLE"
	ErrInternal            ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrTokenRevoked:
		return "You have been signed out. Please sign in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrInstituteOnly:
		return "This resource is restricted to institutes."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrNotExamOwner:
		return "This exam belongs to another institute."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidContent:
		return "The question bank is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrAlreadyDecided:
		return "This exam request has already been reviewed."
	case ErrNotApproved:
		return "This exam has not been approved."
	case ErrExamNotStarted:
		return "This exam has not been opened yet."
	case ErrAlreadyAttempted:
		return "You have already attempted this exam."
	case ErrNoActiveSession:
		return "No active exam session."
	case ErrDeadlinePassed:
		return "The exam time limit has passed."
	case ErrResultsNotReleased:
		return "Results have not been released yet."
	case ErrIntegrity:
		return "Stored exam content failed an integrity check."
	case ErrCorruptContent:
		return "Published exam content could not be read."

	// ─── Upload ────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A question bank file is required."
	case ErrUnsupportedFile:
		return "Only JSON question banks are supported."
	case ErrFileTooLarge:
		return "File exceeds the size limit."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrUpstreamUnavailable:
		return "The content store is unavailable. Please try again."
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
