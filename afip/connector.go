package afip

import (
	"context"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/facturalo/go-afip-facturador/afip/mutex"
	"github.com/facturalo/go-afip-facturador/afip/ticket"
)

var logger = logrus.WithField("component", "afip")

// Connector drives sign-on against the authority. It is safe for
// concurrent use: requests for different (CUIT, environment) keys run
// fully in parallel, requests for the same key are serialized so only
// one sign-on is in flight per tenant.
type Connector struct {
	remote     RemoteClient
	cache      *SessionCache
	ticketBase string

	locks mutex.KeyedMutex[sessionKey]
}

func NewConnector(remote RemoteClient, ticketBase string) *Connector {
	return &Connector{
		remote:     remote,
		cache:      NewSessionCache(),
		ticketBase: ticketBase,
	}
}

// TicketDir resolves the per-tenant ticket cache directory.
func (c *Connector) TicketDir(cuit string, env Environment) string {
	return ticket.Dir(c.ticketBase, env.Name(), cuit)
}

// Connect returns a bound session for the tenant, creating one when the
// cache misses or forceReconnect is set. A session is stored only after
// full, successful binding.
func (c *Connector) Connect(ctx context.Context, creds Credentials, env Environment, forceReconnect bool) (*Session, error) {
	key := sessionKey{creds.CUIT, env}
	c.locks.Lock(key)
	defer c.locks.Unlock(key)

	log := logger.WithFields(logrus.Fields{"cuit": creds.CUIT, "env": env.Name()})

	if !forceReconnect {
		if s, ok := c.cache.Get(creds.CUIT, env); ok {
			log.Debug("reusing cached session")
			return s, nil
		}
	} else {
		c.cache.Invalidate(creds.CUIT, env)
		log.Info("forcing reconnect")
	}

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	certPath, keyPath, cleanup, err := materialize(creds)
	if err != nil {
		return nil, newFault(Unrecoverable, "connect", err)
	}
	defer cleanup()

	access, signErr := c.remote.SignOn(ctx, creds.CUIT, certPath, keyPath, env)
	if signErr == nil {
		return c.bind(ctx, creds.CUIT, env, access)
	}

	kind := Classify(signErr)
	log.WithError(signErr).Warnf("sign-on failed (%s)", kind)

	switch {
	case kind == InvalidInput:
		return nil, signErr

	case kind == AlreadyAuthenticated:
		if s, err := c.reuseTicket(ctx, creds.CUIT, env); err == nil {
			return s, nil
		}
		log.Info("no usable cached ticket, falling back to cache clear and retry")

	case kind.Recoverable():
		// handled below

	default:
		return nil, signErr
	}

	ticket.Clear(c.TicketDir(creds.CUIT, env))

	access, retryErr := c.remote.SignOn(ctx, creds.CUIT, certPath, keyPath, env)
	if retryErr == nil {
		log.Info("sign-on retry succeeded after cache clear")
		return c.bind(ctx, creds.CUIT, env, access)
	}

	log.WithError(retryErr).Error("sign-on retry failed")
	if kind == ConnectionReset {
		return nil, newFault(ConnectionReset, "connect", errors.Wrap(retryErr, "sign-on retry"))
	}
	return nil, retryErr
}

// reuseTicket salvages a still-valid prior session from the newest
// persisted ticket, skipping sign-on entirely.
func (c *Connector) reuseTicket(ctx context.Context, cuit string, env Environment) (*Session, error) {
	t, err := ticket.Latest(c.TicketDir(cuit, env))
	if err != nil {
		return nil, err
	}
	logger.WithField("cuit", cuit).Infof("reusing access ticket from %s", t.Source)
	return c.bind(ctx, cuit, env, Access{Token: t.Token, Sign: t.Sign, Expiry: t.Expiry})
}

func (c *Connector) bind(ctx context.Context, cuit string, env Environment, access Access) (*Session, error) {
	remote, err := c.remote.BindSession(ctx, cuit, access.Token, access.Sign, env)
	if err != nil {
		return nil, err
	}
	s := &Session{
		CUIT:        cuit,
		Environment: env,
		Token:       access.Token,
		Sign:        access.Sign,
		CreatedAt:   time.Now(),
		Remote:      remote,
	}
	c.cache.Put(s)
	return s, nil
}

// materialize writes the PEM pair into scoped temp files. The returned
// cleanup deletes both exactly once, on every exit path.
func materialize(creds Credentials) (certPath, keyPath string, cleanup func(), err error) {
	certFile, err := os.CreateTemp("", "afip-*.crt")
	if err != nil {
		return "", "", nil, errors.Wrap(err, "create temp certificate")
	}
	keyFile, err := os.CreateTemp("", "afip-*.key")
	if err != nil {
		_ = os.Remove(certFile.Name())
		return "", "", nil, errors.Wrap(err, "create temp key")
	}

	cleanup = func() {
		_ = os.Remove(certFile.Name())
		_ = os.Remove(keyFile.Name())
	}

	if _, err = certFile.WriteString(creds.CertPEM); err == nil {
		_, err = keyFile.WriteString(creds.KeyPEM)
	}
	_ = certFile.Close()
	_ = keyFile.Close()
	if err != nil {
		cleanup()
		return "", "", nil, errors.Wrap(err, "write temp credentials")
	}
	return certFile.Name(), keyFile.Name(), cleanup, nil
}
