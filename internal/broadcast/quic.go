package broadcast

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	quic "github.com/quic-go/quic-go"
)

const (
	meshALPN = "studytimer-broadcast"
	// FrameSize is the fixed size of one framed message on a stream.
	FrameSize = 1024
)

func newServerTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("rsa key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, fmt.Errorf("serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create cert: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:   []string{meshALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func newClientTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{meshALPN},
		MinVersion:         tls.VersionTLS13,
	}
}

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod:      2 * time.Second,
		HandshakeIdleTimeout: 3 * time.Second,
		MaxIdleTimeout:       6 * time.Second,
	}
}

// writeFrame writes payload zero-padded to FrameSize.
func writeFrame(w io.Writer, payload []byte, timeout time.Duration) error {
	if len(payload) > FrameSize {
		return fmt.Errorf("payload too large: %d > %d", len(payload), FrameSize)
	}
	frame := make([]byte, FrameSize)
	copy(frame, payload)

	if deadline, ok := w.(interface{ SetWriteDeadline(time.Time) error }); ok && timeout > 0 {
		_ = deadline.SetWriteDeadline(time.Now().Add(timeout))
	}

	written := 0
	for written < FrameSize {
		n, err := w.Write(frame[written:])
		written += n
		if err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		if n == 0 {
			return errors.New("write frame: wrote 0 bytes")
		}
	}
	return nil
}

// readFrames calls handler with the unpadded payload of every frame until
// the reader ends or ctx is done.
func readFrames(ctx context.Context, r io.Reader, handler func(payload []byte)) error {
	buf := make([]byte, FrameSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		payload := bytes.TrimRight(buf, "\x00")
		handler(append([]byte(nil), payload...))
	}
}
