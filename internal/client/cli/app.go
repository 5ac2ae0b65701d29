// Package cli implements identityctl, a command line client of the identity
// service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/identity/internal/client/client"
	"github.com/dmitrijs2005/identity/internal/client/config"
	"github.com/dmitrijs2005/identity/internal/client/session"
	"github.com/dmitrijs2005/identity/internal/common"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage error")

const usage = `usage: identityctl [-a addr] [-s session.db] [-t seconds] [-c config.json] <command>

commands:
  signup <email>                  create an account
  login <email>                   sign in and store the session
  refresh                         rotate the stored refresh token
  logout                          revoke the stored session
  grant <email> <Type:Value>...   add claims to a user (needs login)
  claims <email>                  list the claims of a user
  ping                            check the server`

type App struct {
	config  *config.Config
	out     io.Writer
	clientOpts []client.Option
}

// NewApp builds the CLI. opts are passed to every client it creates.
func NewApp(c *config.Config, out io.Writer, opts ...client.Option) *App {
	if out == nil {
		out = os.Stdout
	}
	return &App{config: c, out: out, clientOpts: opts}
}

// Run executes one command. args are the positional arguments, flags
// already removed.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	case "signup":
		return a.withArgs(rest, 1, func() error { return a.SignUp(ctx, rest[0]) })
	case "login":
		return a.withArgs(rest, 1, func() error { return a.Login(ctx, rest[0]) })
	case "refresh":
		return a.withArgs(rest, 0, func() error { return a.Refresh(ctx) })
	case "logout":
		return a.withArgs(rest, 0, func() error { return a.Logout(ctx) })
	case "grant":
		if len(rest) < 2 {
			return a.usageError("grant needs an email and at least one claim")
		}
		return a.Grant(ctx, rest[0], rest[1:])
	case "claims":
		return a.withArgs(rest, 1, func() error { return a.Claims(ctx, rest[0]) })
	case "ping":
		return a.withArgs(rest, 0, func() error { return a.Ping(ctx) })
	default:
		return a.usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func (a *App) withArgs(rest []string, n int, fn func() error) error {
	if len(rest) != n {
		return a.usageError(fmt.Sprintf("expected %d argument(s), got %d", n, len(rest)))
	}
	return fn()
}

func (a *App) usageError(msg string) error {
	fmt.Fprintln(a.out, usage)
	return fmt.Errorf("%w: %s", ErrUsage, msg)
}

func (a *App) dial(opts ...client.Option) (*client.GRPCClient, error) {
	return client.NewIdentityClient(a.config.ServerEndpointAddr, append(a.clientOpts, opts...)...)
}

func (a *App) openSession(ctx context.Context) (*session.Store, error) {
	return session.Open(ctx, a.config.SessionFile)
}

func (a *App) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) SignUp(ctx context.Context, email string) error {
	password, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}
	confirmation, err := GetPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}

	c, err := a.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	if _, err := c.SignUp(ctx, email, password, confirmation); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s, run 'identityctl login %s'\n", common.NormalizeEmail(email), email)
	return nil
}

func (a *App) Login(ctx context.Context, email string) error {
	password, err := GetPassword(a.out, "Password")
	if err != nil {
		return err
	}

	c, err := a.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	rctx, cancel := a.timeout(ctx)
	defer cancel()

	tokens, err := c.Login(rctx, email, password)
	if err != nil {
		return err
	}

	store, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(ctx, session.Session{Email: email, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged in")
	return nil
}

// authed loads the session and returns a client that persists rotated
// tokens back into it.
func (a *App) authed(ctx context.Context) (*client.GRPCClient, *session.Store, *session.Session, error) {
	store, err := a.openSession(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	sess, err := store.Load(ctx)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	c, err := a.dial(
		client.WithTokens(client.Tokens{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}),
		client.OnRefresh(func(t client.Tokens) {
			_ = store.Save(context.WithoutCancel(ctx), session.Session{
				Email:        sess.Email,
				AccessToken:  t.AccessToken,
				RefreshToken: t.RefreshToken,
			})
		}),
	)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	return c, store, sess, nil
}

func (a *App) Refresh(ctx context.Context) error {
	c, store, _, err := a.authed(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer c.Close()

	rctx, cancel := a.timeout(ctx)
	defer cancel()

	if _, err := c.Refresh(rctx); err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			_ = store.Clear(ctx)
		}
		return err
	}
	fmt.Fprintln(a.out, "session refreshed")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	c, store, _, err := a.authed(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer c.Close()

	rctx, cancel := a.timeout(ctx)
	defer cancel()

	err = c.Logout(rctx)
	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) Grant(ctx context.Context, email string, claims []string) error {
	c, store, _, err := a.authed(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	defer c.Close()

	rctx, cancel := a.timeout(ctx)
	defer cancel()

	if err := c.Grant(rctx, email, claims); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "granted %s to %s\n", strings.Join(claims, ", "), email)
	return nil
}

func (a *App) Claims(ctx context.Context, email string) error {
	c, err := a.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	claims, err := c.Claims(ctx, email)
	if err != nil {
		return err
	}
	if len(claims) == 0 {
		fmt.Fprintln(a.out, "(no claims)")
		return nil
	}
	for _, cl := range claims {
		fmt.Fprintln(a.out, cl)
	}
	return nil
}

func (a *App) Ping(ctx context.Context) error {
	c, err := a.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := a.timeout(ctx)
	defer cancel()

	if err := c.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}
