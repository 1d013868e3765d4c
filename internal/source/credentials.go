package source

import (
	"errors"
	"sync"
)

// Errors raised when the transport cannot authenticate.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrAuthFailed   = errors.New("authentication failed")
)

// CredentialType is a bit set of credential mechanisms the transport
// is willing to accept for a given remote.
type CredentialType uint

const (
	CredentialDefault CredentialType = 1 << iota
	CredentialUsername
	CredentialUsernamePassword
	CredentialSSHKey
	CredentialSSHCustom
	CredentialSSHInteractive
)

// CredentialQuery describes one authentication request from the
// transport.
type CredentialQuery struct {
	AllowedTypes    CredentialType
	URL             string
	UsernameFromURL string
}

type credentialKind int

const (
	credentialInvalid credentialKind = iota
	credentialError
	credentialUsernameOnly
	credentialUserPass
	credentialSSHKeyPair
	credentialTransportDefault
)

// CredentialResponse is the callback's answer: a populated
// credential, Invalid (try the next mechanism) or Error (abort).
type CredentialResponse struct {
	kind       credentialKind
	username   string
	password   string
	publicKey  string
	privateKey string
	passphrase string
}

func CredentialsInvalid() CredentialResponse {
	return CredentialResponse{kind: credentialInvalid}
}

func CredentialsError() CredentialResponse {
	return CredentialResponse{kind: credentialError}
}

func CredentialsForUsername(username string) CredentialResponse {
	return CredentialResponse{kind: credentialUsernameOnly, username: username}
}

func CredentialsForUsernamePassword(username, password string) CredentialResponse {
	return CredentialResponse{kind: credentialUserPass, username: username, password: password}
}

func CredentialsForSSHKey(username, publicKeyPath, privateKeyPath, passphrase string) CredentialResponse {
	return CredentialResponse{
		kind:       credentialSSHKeyPair,
		username:   username,
		publicKey:  publicKeyPath,
		privateKey: privateKeyPath,
		passphrase: passphrase,
	}
}

func CredentialsForDefault() CredentialResponse {
	return CredentialResponse{kind: credentialTransportDefault}
}

// CredentialsCallback answers authentication requests. It must be
// re-entrant and safe for concurrent use: source updates run in
// parallel.
type CredentialsCallback func(CredentialQuery) CredentialResponse

var (
	credentialsMu sync.RWMutex
	credentialsFn CredentialsCallback
)

// SetCredentialsCallback installs the process-wide credentials
// callback. Registration is explicit: State wires it from its
// RuntimeConfig at startup.
func SetCredentialsCallback(fn CredentialsCallback) {
	credentialsMu.Lock()
	defer credentialsMu.Unlock()
	credentialsFn = fn
}

func credentialsCallback() CredentialsCallback {
	credentialsMu.RLock()
	defer credentialsMu.RUnlock()
	return credentialsFn
}
