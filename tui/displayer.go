package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all user-facing output of the admin console,
// including the "go to login" navigation the session core fires on
// unrecoverable failures.
type Displayer interface {
	Banner()
	SessionFound(email string)
	SessionNotFound()
	LoggingIn(email string)
	LoginOK(email string)
	LoginFailed(err error)
	LoggedOut()
	Refreshing()
	RefreshOK()
	AccessTokenRejected()
	TokenRefreshedRetrying()
	LoginRequired()
	SessionSaved(path string)
	SessionSaveFailed(err error)
	Fetching(resource string)
	FetchOK(resource string, count int)
	FetchFailed(resource string, err error)
	Done(email, status string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w. Used when stderr is not a
// TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== UniCash Admin Console ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound(email string) {
	fmt.Fprintf(p.w, "Found stored session for %s\n", email)
}

func (p *PlainDisplayer) SessionNotFound() {
	fmt.Fprintln(p.w, "No stored session, please log in")
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(email string) {
	fmt.Fprintf(p.w, "Logged in as %s\n", email)
}

func (p *PlainDisplayer) LoginFailed(err error) {
	fmt.Fprintf(p.w, "Login failed: %v\n", err)
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out, session cleared")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully")
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	fmt.Fprintln(p.w, "Token refreshed, retrying request...")
}

func (p *PlainDisplayer) LoginRequired() {
	fmt.Fprintln(p.w, "Session expired, please log in again")
}

func (p *PlainDisplayer) SessionSaved(path string) {
	fmt.Fprintf(p.w, "Session saved to %s\n", path)
}

func (p *PlainDisplayer) SessionSaveFailed(err error) {
	fmt.Fprintf(p.w, "Warning: failed to save session: %v\n", err)
}

func (p *PlainDisplayer) Fetching(resource string) {
	fmt.Fprintf(p.w, "Fetching %s...\n", resource)
}

func (p *PlainDisplayer) FetchOK(resource string, count int) {
	fmt.Fprintf(p.w, "Fetched %d %s\n", count, resource)
}

func (p *PlainDisplayer) FetchFailed(resource string, err error) {
	fmt.Fprintf(p.w, "Failed to fetch %s: %v\n", resource, err)
}

func (p *PlainDisplayer) Done(email, status string) {
	fmt.Fprintln(p.w, "----------------------------------------")
	fmt.Fprintf(p.w, "Session: %s\n", status)
	if email != "" {
		fmt.Fprintf(p.w, "Admin:   %s\n", email)
	}
	fmt.Fprintln(p.w, "----------------------------------------")
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                       {}
func (NoopDisplayer) SessionFound(_ string)         {}
func (NoopDisplayer) SessionNotFound()              {}
func (NoopDisplayer) LoggingIn(_ string)            {}
func (NoopDisplayer) LoginOK(_ string)              {}
func (NoopDisplayer) LoginFailed(_ error)           {}
func (NoopDisplayer) LoggedOut()                    {}
func (NoopDisplayer) Refreshing()                   {}
func (NoopDisplayer) RefreshOK()                    {}
func (NoopDisplayer) AccessTokenRejected()          {}
func (NoopDisplayer) TokenRefreshedRetrying()       {}
func (NoopDisplayer) LoginRequired()                {}
func (NoopDisplayer) SessionSaved(_ string)         {}
func (NoopDisplayer) SessionSaveFailed(_ error)     {}
func (NoopDisplayer) Fetching(_ string)             {}
func (NoopDisplayer) FetchOK(_ string, _ int)       {}
func (NoopDisplayer) FetchFailed(_ string, _ error) {}
func (NoopDisplayer) Done(_, _ string)              {}
func (NoopDisplayer) Fatal(_ error)                 {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(email string) {
	t.p.Send(MsgSessionFound{Email: email})
}

func (t *ProgramDisplayer) SessionNotFound() {
	t.p.Send(MsgSessionNotFound{})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(email string) {
	t.p.Send(MsgLoginOK{Email: email})
}

func (t *ProgramDisplayer) LoginFailed(err error) {
	t.p.Send(MsgLoginFailed{Err: err})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) LoginRequired() {
	t.p.Send(MsgLoginRequired{})
}

func (t *ProgramDisplayer) SessionSaved(path string) {
	t.p.Send(MsgSessionSaved{Path: path})
}

func (t *ProgramDisplayer) SessionSaveFailed(err error) {
	t.p.Send(MsgSessionSaveFailed{Err: err})
}

func (t *ProgramDisplayer) Fetching(resource string) {
	t.p.Send(MsgFetching{Resource: resource})
}

func (t *ProgramDisplayer) FetchOK(resource string, count int) {
	t.p.Send(MsgFetchOK{Resource: resource, Count: count})
}

func (t *ProgramDisplayer) FetchFailed(resource string, err error) {
	t.p.Send(MsgFetchFailed{Resource: resource, Err: err})
}

func (t *ProgramDisplayer) Done(email, status string) {
	t.p.Send(MsgDone{Email: email, Status: status})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
