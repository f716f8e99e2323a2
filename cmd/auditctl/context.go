package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"

	"github.com/JonMunkholm/patrimonio/internal/application"
	"github.com/JonMunkholm/patrimonio/internal/config"
	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/logging"
)

// commandContext carries what every subcommand needs: configuration, the
// terminal streams and a way to open the session.
type commandContext struct {
	configFlag  string
	// autoRestore accepts a saved session without asking.
	autoRestore bool

	in  io.Reader
	out io.Writer
	err io.Writer

	// logOut receives log lines; the TUI swaps it out.
	logOut io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// interactive overrides terminal detection in tests.
	interactive *bool
}

func newCommandContext() *commandContext {
	return &commandContext{
		in:     os.Stdin,
		out:    os.Stdout,
		err:    os.Stderr,
		logOut: os.Stderr,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		_ = godotenv.Overload()

		path := os.Getenv(config.ConfigFileEnv)
		if flag := strings.TrimSpace(c.configFlag); flag != "" {
			path = flag
		}
		cfg, err := config.LoadFile(path)
		if err != nil {
			c.configErr = err
			return
		}
		logging.SetupWriter(c.logOut, cfg.Logging.Level, cfg.Logging.Format)
		c.config = cfg
	})
	return c.config, c.configErr
}

// isInteractive reports whether stdin is a terminal we can prompt on.
func (c *commandContext) isInteractive() bool {
	if c.interactive != nil {
		return *c.interactive
	}
	f, ok := c.in.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// withApp opens the session, settles a pending restore and runs fn.
// With resolveRestore false a pending restore is left for fn to handle.
func (c *commandContext) withApp(ctx context.Context, resolveRestore bool, fn func(*application.App) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	app, err := application.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.Background()); cerr != nil {
			fmt.Fprintln(c.err, "aviso:", cerr)
		}
	}()

	if count, pending := app.Start(ctx); pending && resolveRestore {
		if err := c.settleRestore(ctx, app.Session, count); err != nil {
			return err
		}
	}
	return fn(app)
}

// settleRestore asks whether to restore a saved session. Without a terminal
// it fails so scripts never discard a saved audit by accident.
func (c *commandContext) settleRestore(ctx context.Context, s *core.Session, count int) error {
	accept := c.autoRestore
	if !accept {
		if !c.isInteractive() {
			return fmt.Errorf("%w: %d itens salvos; use --restore, `auditctl restore --yes` ou `--no`", core.ErrRestorePending, count)
		}
		var ok bool
		accept, ok = c.confirm(fmt.Sprintf("Encontramos uma sessão salva com %d itens. Restaurar?", count), true)
		if !ok {
			return context.Canceled
		}
	}
	n, err := s.ResolveRestore(ctx, accept)
	if err != nil {
		return err
	}
	if accept && !c.autoRestore {
		fmt.Fprintf(c.out, "Sessão restaurada: %d itens\n", n)
	}
	return nil
}

// confirm asks a yes/no question. ok is false on end of input.
func (c *commandContext) confirm(question string, def bool) (answer, ok bool) {
	hint := "[s/N]"
	if def {
		hint = "[S/n]"
	}
	line, ok := c.readLine(fmt.Sprintf("%s %s ", question, hint))
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return def, true
	case "s", "sim", "y", "yes":
		return true, true
	}
	return false, true
}

// textInput prompts on the terminal, or cancels when there is none.
func (c *commandContext) textInput() core.TextInput {
	if !c.isInteractive() {
		return core.NoInput
	}
	return core.TextInputFunc(func(ctx context.Context, prompt string) (string, bool) {
		line, ok := c.readLine(prompt + " ")
		if !ok {
			return "", false
		}
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

func (c *commandContext) readLine(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return strings.TrimSuffix(b.String(), "\r"), true
			}
			b.WriteByte(buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && b.Len() > 0 {
				return b.String(), true
			}
			return "", false
		}
	}
}
