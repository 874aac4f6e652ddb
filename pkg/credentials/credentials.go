// Package credentials resolves how requests authenticate against the
// tracker: a personal access token, or a user name and password taken
// from configuration or asked for on the terminal.
package credentials

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Username length bounds accepted by the prompt.
const (
	MinUsernameLength = 1
	MaxUsernameLength = 64
)

// maxPromptAttempts bounds how often the prompt asks again after bad input.
const maxPromptAttempts = 3

var (
	// ErrNoCredentials is returned when neither configuration nor the
	// prompt produced credentials.
	ErrNoCredentials = errors.New("no credentials available")

	// ErrInvalidUsername is returned for a username outside the length bounds.
	ErrInvalidUsername = fmt.Errorf("username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)

	// ErrEmptyPassword is returned when the password is empty.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// Credentials authenticate search requests. Token takes precedence over
// Username and Password.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// IsZero reports whether no credentials are set.
func (c Credentials) IsZero() bool {
	return c.Token == "" && c.Username == ""
}

// Kind returns "bearer", "basic" or "none".
func (c Credentials) Kind() string {
	switch {
	case c.Token != "":
		return "bearer"
	case c.Username != "":
		return "basic"
	default:
		return "none"
	}
}

// AuthorizationHeader returns the Authorization header value, or "" when
// no credentials are set.
func (c Credentials) AuthorizationHeader() string {
	switch c.Kind() {
	case "bearer":
		return "Bearer " + c.Token
	case "basic":
		raw := c.Username + ":" + c.Password
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	default:
		return ""
	}
}

// String never includes secrets, so Credentials are safe to log.
func (c Credentials) String() string {
	switch c.Kind() {
	case "bearer":
		return "bearer token " + mask(c.Token)
	case "basic":
		return "basic user=" + c.Username
	default:
		return "none"
	}
}

func mask(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Validate checks username length and that a password accompanies it.
func (c Credentials) Validate() error {
	if c.Token != "" {
		return nil
	}
	if n := utf8.RuneCountInString(c.Username); n < MinUsernameLength || n > MaxUsernameLength {
		return ErrInvalidUsername
	}
	if c.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Prompter asks for a username and password.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// readSecret reads the password without echo. Nil reads a plain line.
	readSecret func() ([]byte, error)
}

// NewPrompter creates a prompter reading lines from in. Passwords are read
// as plain lines too.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// NewTerminalPrompter prompts on stderr and reads stdin, hiding the
// password when stdin is a terminal.
func NewTerminalPrompter() *Prompter {
	p := NewPrompter(os.Stdin, os.Stderr)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		p.readSecret = func() ([]byte, error) {
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return secret, err
		}
	}
	return p
}

// Prompt asks until a valid username and password are entered, giving up
// after a few attempts or at end of input.
func (p *Prompter) Prompt() (Credentials, error) {
	var lastErr error
	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		fmt.Fprint(p.out, "Please input your account: ")
		username, err := p.readLine()
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: %w", ErrNoCredentials, err)
		}

		fmt.Fprint(p.out, "Please input your password: ")
		password, err := p.readPassword()
		if err != nil {
			return Credentials{}, fmt.Errorf("%w: %w", ErrNoCredentials, err)
		}

		creds := Credentials{Username: username, Password: password}
		if lastErr = creds.Validate(); lastErr == nil {
			return creds, nil
		}
		fmt.Fprintf(p.out, "Invalid input: %v\n", lastErr)
	}
	return Credentials{}, fmt.Errorf("%w: %w", ErrNoCredentials, lastErr)
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) readPassword() (string, error) {
	if p.readSecret != nil {
		secret, err := p.readSecret()
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}
	return p.readLine()
}

// Resolve returns configured when it is set, otherwise asks prompter. A nil
// prompter means no interactive fallback.
func Resolve(configured Credentials, prompter *Prompter) (Credentials, error) {
	if !configured.IsZero() {
		if err := configured.Validate(); err != nil {
			return Credentials{}, err
		}
		return configured, nil
	}
	if prompter == nil {
		return Credentials{}, ErrNoCredentials
	}
	return prompter.Prompt()
}
