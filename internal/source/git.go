package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/ralph-pm/ralph/internal/api"
	"github.com/ralph-pm/ralph/internal/future"
)

// TypeGit is the sources.json discriminator of GitSource.
const TypeGit = "git"

// GitSource ingests packages from a remote Git repository, one local
// clone per database scope.
type GitSource struct {
	name        string
	url         string
	lastUpdated time.Time
	packages    []*api.Package
}

func NewGitSource(name, url string) *GitSource {
	return &GitSource{name: name, url: url}
}

func (s *GitSource) Name() string               { return s.name }
func (s *GitSource) TypeString() string         { return TypeGit }
func (s *GitSource) URL() string                { return s.url }
func (s *GitSource) LastUpdated() time.Time     { return s.lastUpdated }
func (s *GitSource) SetLastUpdated(t time.Time) { s.lastUpdated = t.UTC() }

func (s *GitSource) Packages() []*api.Package {
	return append([]*api.Package(nil), s.packages...)
}

// Commit applies an update snapshot. The database calls this under
// its write lock.
func (s *GitSource) Commit(snap *Snapshot) {
	s.packages = snap.Packages
	s.lastUpdated = snap.UpdatedAt
}

// LoadCatalog re-ingests the catalog from an existing clone working
// tree, without touching the network. Used when a database is opened.
func (s *GitSource) LoadCatalog(cloneDir string) error {
	if _, err := os.Stat(cloneDir); os.IsNotExist(err) {
		return nil
	}
	pkgs, err := ingestTree(cloneDir, func(string) {})
	if err != nil {
		return err
	}
	s.packages = pkgs
	return nil
}

func (s *GitSource) entry() sourceEntry {
	return sourceEntry{
		LastUpdated: s.lastUpdated.UTC(),
		Name:        s.name,
		Type:        TypeGit,
		URL:         s.url,
	}
}

// Update clones or fetches the remote, force-checks-out the remote
// default branch, updates submodules recursively and re-ingests the
// manifests. Nothing is mutated on failure.
func (s *GitSource) Update(cloneDir string) *future.Future[*Snapshot] {
	return future.Async(func(n future.Notifier) (*Snapshot, error) {
		snap, err := s.update(n, cloneDir)
		if err != nil {
			if errors.Is(err, future.ErrCanceled) {
				return nil, err
			}
			return nil, &UpdateError{Source: s.name, Cause: err}
		}
		return snap, nil
	})
}

func (s *GitSource) update(n future.Notifier, cloneDir string) (*Snapshot, error) {
	ctx, stop := notifierContext(n)
	defer stop()

	auth, err := authFor(s.url)
	if err != nil {
		return nil, err
	}
	progress := &progressWriter{n: n}

	repo, err := git.PlainOpen(cloneDir)
	switch {
	case err == nil:
		if err := n.Status("Fetching..."); err != nil {
			return nil, err
		}
		err = repo.FetchContext(ctx, &git.FetchOptions{
			RemoteName: "origin",
			Auth:       auth,
			Progress:   progress,
			Force:      true,
		})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, gitTransportError(ctx, err)
		}
	case errors.Is(err, git.ErrRepositoryNotExists):
		if err := n.Status(fmt.Sprintf("Cloning %s...", s.url)); err != nil {
			return nil, err
		}
		repo, err = git.PlainCloneContext(ctx, cloneDir, false, &git.CloneOptions{
			URL:      s.url,
			Auth:     auth,
			Progress: progress,
		})
		if err != nil {
			return nil, gitTransportError(ctx, err)
		}
	default:
		return nil, err
	}

	branch, err := defaultBranch(repo)
	if err != nil {
		return nil, err
	}
	if err := n.Status(fmt.Sprintf("Checking out %s...", branch.Name().Short())); err != nil {
		return nil, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	err = worktree.Checkout(&git.CheckoutOptions{Hash: branch.Hash(), Force: true})
	if err != nil {
		return nil, err
	}

	submodules, err := worktree.Submodules()
	if err != nil {
		return nil, err
	}
	if len(submodules) > 0 {
		if err := n.Status("Updating submodules..."); err != nil {
			return nil, err
		}
		err = submodules.Update(&git.SubmoduleUpdateOptions{
			Init:              true,
			RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
			Auth:              auth,
		})
		if err != nil {
			return nil, gitTransportError(ctx, err)
		}
	}

	if err := n.Status("Scanning for manifests..."); err != nil {
		return nil, err
	}
	pkgs, err := ingestTree(cloneDir, func(warning string) {
		_ = n.Status("warning: " + warning)
	})
	if err != nil {
		return nil, err
	}

	return &Snapshot{Packages: pkgs, UpdatedAt: time.Now().UTC()}, nil
}

// defaultBranch resolves the remote HEAD, falling back to the usual
// branch names when the remote did not advertise one.
func defaultBranch(repo *git.Repository) (*plumbing.Reference, error) {
	if ref, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), true); err == nil {
		return ref, nil
	}
	for _, name := range []string{"main", "master"} {
		if ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", name), true); err == nil {
			return ref, nil
		}
	}
	if ref, err := repo.Head(); err == nil {
		return ref, nil
	}
	return nil, fmt.Errorf("cannot determine default branch")
}

// notifierContext ties a context to the notifier's cancellation.
func notifierContext(n future.Notifier) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		select {
		case <-n.Done():
			cancel()
		case <-stopped:
		}
	}()
	return ctx, func() { cancel(); close(stopped) }
}

// gitTransportError maps go-git failures onto the error taxonomy.
func gitTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return future.ErrCanceled
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return fmt.Errorf("%w: %s", ErrAuthRequired, err)
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %s", ErrAuthFailed, err)
	}
	return err
}

// authFor asks the registered credentials callback for an auth method
// suitable for remote. With no callback the transport defaults apply
// (ssh agent, netrc and friends).
func authFor(remote string) (transport.AuthMethod, error) {
	fn := credentialsCallback()
	if fn == nil {
		return nil, nil
	}

	allowed, username := allowedTypes(remote)
	for _, t := range []CredentialType{CredentialUsernamePassword, CredentialSSHKey, CredentialUsername, CredentialDefault} {
		if allowed&t == 0 {
			continue
		}
		response := fn(CredentialQuery{
			AllowedTypes:    t,
			URL:             remote,
			UsernameFromURL: username,
		})
		switch response.kind {
		case credentialInvalid:
			continue
		case credentialError:
			return nil, ErrAuthFailed
		case credentialUserPass:
			return &githttp.BasicAuth{Username: response.username, Password: response.password}, nil
		case credentialUsernameOnly:
			return &githttp.BasicAuth{Username: response.username}, nil
		case credentialSSHKeyPair:
			keys, err := gitssh.NewPublicKeysFromFile(response.username, response.privateKey, response.passphrase)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrAuthFailed, err)
			}
			return keys, nil
		case credentialTransportDefault:
			return nil, nil
		}
	}
	return nil, nil
}

// allowedTypes infers the credential mechanisms a remote can accept
// from its URL shape, plus the username embedded in it, if any.
func allowedTypes(remote string) (CredentialType, string) {
	if u, err := url.Parse(remote); err == nil && u.Scheme != "" {
		username := ""
		if u.User != nil {
			username = u.User.Username()
		}
		switch u.Scheme {
		case "http", "https":
			return CredentialDefault | CredentialUsername | CredentialUsernamePassword, username
		case "ssh":
			return CredentialDefault | CredentialSSHKey | CredentialSSHCustom | CredentialSSHInteractive, username
		}
		return CredentialDefault, username
	}
	// scp-like syntax: user@host:path
	if at := strings.Index(remote, "@"); at > 0 && strings.Contains(remote, ":") {
		return CredentialDefault | CredentialSSHKey | CredentialSSHCustom | CredentialSSHInteractive, remote[:at]
	}
	return CredentialDefault, ""
}
