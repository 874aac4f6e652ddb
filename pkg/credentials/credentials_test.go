package credentials

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{
			name:  "basic",
			creds: Credentials{Username: "jdoe", Password: "s3cret"},
			want:  "Basic " + base64.StdEncoding.EncodeToString([]byte("jdoe:s3cret")),
		},
		{
			name:  "token wins over basic",
			creds: Credentials{Username: "jdoe", Password: "s3cret", Token: "pat-123"},
			want:  "Bearer pat-123",
		},
		{
			name:  "none",
			creds: Credentials{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.creds.AuthorizationHeader())
		})
	}
}

func TestString_HidesSecrets(t *testing.T) {
	basic := Credentials{Username: "jdoe", Password: "s3cret"}
	assert.NotContains(t, basic.String(), "s3cret")
	assert.Contains(t, basic.String(), "jdoe")

	token := Credentials{Token: "NjM4MTk0ODY2NzY2OkZ4"}
	assert.NotContains(t, token.String(), "NjM4MTk0ODY2NzY2OkZ4")
	assert.Equal(t, "bearer token NjM4...OkZ4", token.String())

	assert.Equal(t, "none", Credentials{}.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{name: "valid basic", creds: Credentials{Username: "jdoe", Password: "pw"}},
		{name: "token only", creds: Credentials{Token: "pat"}},
		{name: "empty username", creds: Credentials{Password: "pw"}, wantErr: ErrInvalidUsername},
		{name: "long username", creds: Credentials{Username: strings.Repeat("u", 65), Password: "pw"}, wantErr: ErrInvalidUsername},
		{name: "max username", creds: Credentials{Username: strings.Repeat("u", 64), Password: "pw"}},
		{name: "empty password", creds: Credentials{Username: "jdoe"}, wantErr: ErrEmptyPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPrompter_Prompt(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("jdoe\r\ns3cret\n"), &out)

	creds, err := p.Prompt()
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "jdoe", Password: "s3cret"}, creds)
	assert.Contains(t, out.String(), "Please input your account:")
	assert.Contains(t, out.String(), "Please input your password:")
}

func TestPrompter_RetriesInvalidInput(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\nignored\njdoe\ns3cret\n"), &out)

	creds, err := p.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "jdoe", creds.Username)
	assert.Contains(t, out.String(), "Invalid input")
}

func TestPrompter_GivesUp(t *testing.T) {
	p := NewPrompter(strings.NewReader("\n\n\n\n\n\n"), &bytes.Buffer{})

	_, err := p.Prompt()
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestPrompter_EndOfInput(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})

	_, err := p.Prompt()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestPrompter_SecretReader(t *testing.T) {
	p := NewPrompter(strings.NewReader("jdoe\n"), &bytes.Buffer{})
	p.readSecret = func() ([]byte, error) { return []byte("hidden"), nil }

	creds, err := p.Prompt()
	require.NoError(t, err)
	assert.Equal(t, "hidden", creds.Password)

	p = NewPrompter(strings.NewReader("jdoe\n"), &bytes.Buffer{})
	p.readSecret = func() ([]byte, error) { return nil, errors.New("tty closed") }
	_, err = p.Prompt()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestResolve(t *testing.T) {
	configured := Credentials{Token: "pat"}
	got, err := Resolve(configured, nil)
	require.NoError(t, err)
	assert.Equal(t, configured, got)

	_, err = Resolve(Credentials{Username: "jdoe"}, nil)
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = Resolve(Credentials{}, nil)
	assert.ErrorIs(t, err, ErrNoCredentials)

	got, err = Resolve(Credentials{}, NewPrompter(strings.NewReader("jdoe\npw\n"), &bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, "jdoe", got.Username)
}
