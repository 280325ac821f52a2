// Package ticket reads and clears the durable access tickets (TA files)
// the authentication client leaves on disk. It is a fallback source
// only: callers treat ErrNoTicket as "no usable fallback", never as
// fatal.
package ticket

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "ticket")

// ErrNoTicket means the cache directory holds no usable ticket.
var ErrNoTicket = errors.New("no usable access ticket in cache")

// Ticket is a persisted authentication artifact.
type Ticket struct {
	Token  string
	Sign   string
	Expiry time.Time
	Source string // file it was read from
}

// Dir resolves the cache directory for one (environment, tenant) pair.
// Partitioning per tenant keeps Clear from evicting other tenants'
// valid tickets.
func Dir(base, env, cuit string) string {
	return filepath.Join(base, env, cuit)
}

// Latest parses the most recently modified ticket file in dir. When
// multiple tickets exist the newest one is authoritative.
func Latest(dir string) (*Ticket, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrNoTicket
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(files) == 0 {
		return nil, ErrNoTicket
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })

	newest := files[0]
	t, err := parseFile(newest.path)
	if err != nil {
		logger.WithError(err).Warnf("ticket file %s does not parse", newest.path)
		return nil, ErrNoTicket
	}
	t.Source = newest.path
	return t, nil
}

// Clear deletes every file in dir. Failure to delete an individual file
// is logged and skipped: partial cleanup is acceptable since the caller
// retries sign-on anyway.
func Clear(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logger.WithError(err).Warnf("could not delete cached ticket %s", path)
		}
	}
	logger.Debugf("ticket cache %s cleared", dir)
}

func parseFile(path string) (*Ticket, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, errors.Wrap(err, "read ticket")
	}

	token := doc.FindElement("//credentials/token")
	sign := doc.FindElement("//credentials/sign")
	if token == nil || sign == nil || token.Text() == "" || sign.Text() == "" {
		return nil, errors.New("ticket has no token/sign credentials")
	}

	t := &Ticket{Token: token.Text(), Sign: sign.Text()}
	if exp := doc.FindElement("//header/expirationTime"); exp != nil {
		if ts, err := time.Parse(time.RFC3339, exp.Text()); err == nil {
			t.Expiry = ts
		}
	}
	return t, nil
}
