package tui

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that a stored session was found on disk.
type MsgSessionFound struct{ Email string }

// MsgSessionNotFound signals that no stored session exists.
type MsgSessionNotFound struct{}

// MsgLoggingIn signals that a login attempt has started.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Email string }

// MsgLoginFailed signals that the login attempt was rejected.
type MsgLoginFailed struct{ Err error }

// MsgLoggedOut signals that the session was cleared on request.
type MsgLoggedOut struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the access token was refreshed.
type MsgRefreshOK struct{}

// MsgAccessTokenRejected signals that the server rejected the access token (401).
type MsgAccessTokenRejected struct{}

// MsgTokenRefreshedRetrying signals that the refreshed token is being retried.
type MsgTokenRefreshedRetrying struct{}

// MsgLoginRequired signals that the session is unrecoverable and the
// admin must log in again.
type MsgLoginRequired struct{}

// MsgSessionSaved signals that credentials were persisted.
type MsgSessionSaved struct{ Path string }

// MsgSessionSaveFailed signals that persisting credentials failed.
type MsgSessionSaveFailed struct{ Err error }

// MsgFetching signals that a resource request has started.
type MsgFetching struct{ Resource string }

// MsgFetchOK signals that a resource request completed.
type MsgFetchOK struct {
	Resource string
	Count    int
}

// MsgFetchFailed signals that a resource request failed.
type MsgFetchFailed struct {
	Resource string
	Err      error
}

// MsgDone signals successful completion of the command.
type MsgDone struct {
	Email  string
	Status string
}

// MsgFatal signals a fatal error that terminates the command.
type MsgFatal struct{ Err error }
