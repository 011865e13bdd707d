package mount

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloud-drive-tools/cdt/pkg/runner"
	"github.com/cloud-drive-tools/cdt/pkg/types"
)

const (
	// passphraseEnv is the private channel for handing the passphrase to
	// encfsctl's extpass program. The passphrase never appears in argv.
	passphraseEnv     = "CDT_ENCFS_PASSPHRASE"
	passphraseExtpass = `printf '%s' "$` + passphraseEnv + `"`
)

// EncfsMounter establishes the two encfs views: the reverse mount exposing
// local plaintext as ciphertext for upload, and the forward mount decrypting
// the remote ciphertext. Both read the passphrase from stdin via
// --stdinpass.
type EncfsMounter struct {
	runner       runner.ProcessRunner
	secret       *types.Secret
	encfs6Config string
}

func NewEncfsMounter(r runner.ProcessRunner, secret *types.Secret, encfs6Config string) *EncfsMounter {
	return &EncfsMounter{
		runner:       r,
		secret:       secret,
		encfs6Config: encfs6Config,
	}
}

func (e *EncfsMounter) env() []string {
	return []string{"ENCFS6_CONFIG=" + e.encfs6Config}
}

// MountReverse mounts cipherDir as the encrypted view of plainDir.
func (e *EncfsMounter) MountReverse(ctx context.Context, plainDir string, cipherDir string) error {
	buf, err := e.secret.Open()
	if err != nil {
		return fmt.Errorf("cannot open passphrase: %w", err)
	}
	defer buf.Destroy()

	return e.runner.Run(ctx, runner.CommandSpec{
		Path:  "encfs",
		Args:  []string{"--stdinpass", "--reverse", plainDir, cipherDir},
		Env:   e.env(),
		Stdin: bytes.NewReader(buf.Bytes()),
	})
}

// MountForward mounts plainDir as the decrypted view of cipherDir.
func (e *EncfsMounter) MountForward(ctx context.Context, cipherDir string, plainDir string) error {
	buf, err := e.secret.Open()
	if err != nil {
		return fmt.Errorf("cannot open passphrase: %w", err)
	}
	defer buf.Destroy()

	return e.runner.Run(ctx, runner.CommandSpec{
		Path:  "encfs",
		Args:  []string{"--stdinpass", cipherDir, plainDir},
		Env:   e.env(),
		Stdin: bytes.NewReader(buf.Bytes()),
	})
}

// EncodeName returns the encfs-encoded form of a plaintext path or file
// name, relative to rootDir. encfsctl has no --stdinpass, so the passphrase
// travels through the child environment instead of argv.
func (e *EncfsMounter) EncodeName(ctx context.Context, rootDir string, name string) (string, error) {
	buf, err := e.secret.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open passphrase: %w", err)
	}
	defer buf.Destroy()

	output, err := e.runner.Output(ctx, runner.CommandSpec{
		Path: "encfsctl",
		Args: []string{"encode", "--extpass", passphraseExtpass, rootDir, name},
		Env:  append(e.env(), passphraseEnv+"="+buf.String()),
	})
	if err != nil {
		return "", err
	}

	encoded := strings.TrimSpace(string(output))
	if encoded == "" {
		return "", fmt.Errorf("encfsctl returned an empty encoding for %q", name)
	}
	return encoded, nil
}
