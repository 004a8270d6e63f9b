package autherr

// Action is a recovery step the UI can take for a classified error.
type Action string

const (
	ActionFixInput           Action = "fix_input"
	ActionShowForgotPassword Action = "show_forgot_password"
	ActionRedirectLogin      Action = "redirect_login"
	ActionWaitAndRetry       Action = "wait_and_retry"
	ActionCheckConnection    Action = "check_connection"
	ActionRefreshPage        Action = "refresh_page"
	ActionRetry              Action = "retry"
)

// Suggestion is a recovery action and the message shown with it.
type Suggestion struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
}

var suggestions = map[Code]Suggestion{
	CodeInvalidEmail: {
		Action:  ActionFixInput,
		Message: "Please check your email format (e.g., user@example.com)",
	},
	CodeInvalidPassword: {
		Action:  ActionFixInput,
		Message: "Password must be at least 8 characters with mixed case, numbers, and symbols",
	},
	CodeUserNotFound: {
		Action:  ActionRedirectLogin,
		Message: "No account uses this email. Register or sign in with another method",
	},
	CodeWrongPassword: {
		Action:  ActionShowForgotPassword,
		Message: "Forgot your password? Click the link below to reset it.",
	},
	CodeEmailAlreadyRegistered: {
		Action:  ActionRedirectLogin,
		Message: "Go to login page to access your account",
	},
	CodeRateLimited: {
		Action:  ActionWaitAndRetry,
		Message: "Please wait 15 minutes before attempting again",
	},
	CodeNetworkError: {
		Action:  ActionCheckConnection,
		Message: "Check your internet connection and try again",
	},
	CodeSessionExpired: {
		Action:  ActionRedirectLogin,
		Message: "Please log in again",
	},
	CodeCSRFFailed: {
		Action:  ActionRefreshPage,
		Message: "Security check failed. Please refresh and try again",
	},
}

// RecoverySuggestion returns the fixed recovery hint for code. Unknown codes
// get a plain retry.
func RecoverySuggestion(code Code) Suggestion {
	if s, ok := suggestions[code]; ok {
		return s
	}
	return Suggestion{Action: ActionRetry, Message: "Please try again"}
}
