package polkadot

import (
	"context"
	"sync"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

var signingContext = []byte("substrate")

// Backend verifies sr25519 signatures once its one-time warm-up has finished.
type Backend struct {
	once sync.Once
	done chan struct{}
	err  error
	warm func() error
}

func NewBackend() *Backend {
	return &Backend{done: make(chan struct{}), warm: selfTest}
}

var defaultBackend = NewBackend()

// Ready blocks until the warm-up has completed. Only the first call starts it.
func (b *Backend) Ready(ctx context.Context) error {
	b.once.Do(func() {
		go func() {
			b.err = b.warm()
			if b.err != nil {
				log.Error("sr25519 backend warm-up fail", "err", b.err)
			} else {
				log.Debug("sr25519 backend ready")
			}
			close(b.done)
		}()
	})
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for sr25519 backend")
	}
}

func (b *Backend) Verify(ctx context.Context, pub [32]byte, msg []byte, sig [64]byte) (bool, error) {
	if err := b.Ready(ctx); err != nil {
		return false, err
	}
	return verifySr25519(pub, msg, sig)
}

func verifySr25519(pub [32]byte, msg []byte, sig [64]byte) (bool, error) {
	pk := new(schnorrkel.PublicKey)
	if err := pk.Decode(pub); err != nil {
		return false, errors.Wrap(err, "decode sr25519 public key")
	}
	s := new(schnorrkel.Signature)
	if err := s.Decode(sig); err != nil {
		return false, nil
	}
	return pk.Verify(s, schnorrkel.NewSigningContext(signingContext, msg))
}

// selfTest signs and verifies a throwaway message to exercise the curve code
// before the first real verification.
func selfTest() error {
	sk, pk, err := schnorrkel.GenerateKeypair()
	if err != nil {
		return errors.Wrap(err, "generate sr25519 keypair")
	}
	msg := []byte("warm-up")
	sig, err := sk.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return errors.Wrap(err, "sign warm-up message")
	}
	ok, err := verifySr25519(pk.Encode(), msg, sig.Encode())
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("sr25519 self test failed")
	}
	return nil
}
