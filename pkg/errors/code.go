package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Judge errors
// 14000-14999: Contest & Ranking errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	InvalidState        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Submission & Judge Errors (13000-13999) ==========

	LanguageNotFound     ErrorCode = 13000
	ProblemNotFound      ErrorCode = 13001
	JobNotFound          ErrorCode = 13002
	SubmissionLimited    ErrorCode = 13003
	JudgeSystemError     ErrorCode = 13100
	CompileSpawnFailed   ErrorCode = 13101
	WorkspaceIOFailed    ErrorCode = 13102
	CheckerProtocolError ErrorCode = 13103
	JobAlreadyActive     ErrorCode = 13104
	JobNotCancelable     ErrorCode = 13105

	// ========== Contest & Ranking Errors (14000-14999) ==========

	ContestNotFound      ErrorCode = 14000
	UserNotFound         ErrorCode = 14001
	UserNotInContest     ErrorCode = 14002
	ProblemNotInContest  ErrorCode = 14003
	ContestClosed        ErrorCode = 14004
	UserNameTaken        ErrorCode = 14005
	RankingRatioMissing  ErrorCode = 14100
	RankingScopeNotFound ErrorCode = 14101
	RankingRuleUnknown   ErrorCode = 14102
)

var messages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	InvalidState:        "Invalid state",
	TooManyRequests:     "Too many requests",
	ServiceUnavailable:  "Service unavailable",

	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found",
	RecordAlreadyExists: "Record already exists",

	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	LanguageNotFound:     "Language not supported",
	ProblemNotFound:      "Problem not found",
	JobNotFound:          "Job not found",
	SubmissionLimited:    "Submission limit reached",
	JudgeSystemError:     "Judge system error",
	CompileSpawnFailed:   "Failed to spawn compiler",
	WorkspaceIOFailed:    "Workspace I/O failed",
	CheckerProtocolError: "Special judge protocol error",
	JobAlreadyActive:     "Job is already being judged",
	JobNotCancelable:     "Job is not cancelable",

	ContestNotFound:      "Contest not found",
	UserNotFound:         "User not found",
	UserNotInContest:     "User is not in the contest",
	ProblemNotInContest:  "Problem is not in the contest",
	ContestClosed:        "Contest is not open now",
	UserNameTaken:        "User name already exists",
	RankingRatioMissing:  "Dynamic ranking ratio not found",
	RankingScopeNotFound: "Ranking scope not found",
	RankingRuleUnknown:   "Unknown ranking rule",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// Reason returns the wire-level reason token reported to API clients.
// The token set is fixed; existing clients match on it.
func (c ErrorCode) Reason() string {
	switch {
	case c == Success:
		return ""
	case c == NotFound, c == RecordNotFound, c == LanguageNotFound,
		c == ProblemNotFound, c == JobNotFound, c == ContestNotFound,
		c == UserNotFound, c == RankingScopeNotFound:
		return "ERR_NOT_FOUND"
	case c == SubmissionLimited, c == TooManyRequests:
		return "ERR_RATE_LIMIT"
	case c == InvalidState, c == JobAlreadyActive, c == JobNotCancelable:
		return "ERR_INVALID_STATE"
	case c == CheckerProtocolError:
		return "ERR_EXTERNAL"
	case c == InvalidParams, c == UserNameTaken, c == UserNotInContest,
		c == ProblemNotInContest, c == ContestClosed, c == RankingRatioMissing,
		c == RankingRuleUnknown, c >= 10300 && c < 10400:
		return "ERR_INVALID_ARGUMENT"
	default:
		return "ERR_INTERNAL"
	}
}

// APICode returns the small numeric code carried in error response bodies,
// kept compatible with existing clients.
func (c ErrorCode) APICode() int {
	switch c.Reason() {
	case "ERR_INVALID_ARGUMENT":
		return 1
	case "ERR_INVALID_STATE":
		return 2
	case "ERR_NOT_FOUND":
		return 3
	case "ERR_RATE_LIMIT":
		return 4
	case "ERR_EXTERNAL":
		return 5
	default:
		return 6
	}
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RecordNotFound, c == LanguageNotFound,
		c == ProblemNotFound, c == JobNotFound, c == ContestNotFound,
		c == UserNotFound, c == RankingScopeNotFound:
		return 404
	case c == InvalidParams, c == UserNameTaken, c == UserNotInContest,
		c == ProblemNotInContest, c == ContestClosed, c == RankingRatioMissing,
		c == RankingRuleUnknown, c == SubmissionLimited, c == InvalidState,
		c == JobAlreadyActive, c == JobNotCancelable, c == TooManyRequests:
		return 400
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == ServiceUnavailable:
		return 503
	default:
		return 500
	}
}
