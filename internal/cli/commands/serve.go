package commands

import (
	"fmt"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gorilla/sessions"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/ballotbox/internal/page"
	"github.com/leapstack-labs/ballotbox/internal/poll"
	"github.com/leapstack-labs/ballotbox/internal/session"
	"github.com/leapstack-labs/ballotbox/internal/ui"
	"github.com/leapstack-labs/ballotbox/internal/ui/resources"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Open bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the voting page server",
		Long: `Start a web server that hosts the voting page.

Every browser session gets its own page loop. Poll lists, poll details and
live vote counts are streamed to the browser over server-sent events.`,
		Example: `  # Start on the configured port
  ballotbox serve

  # Start on a custom port and open a browser
  ballotbox serve --port 3000 --open

  # Reload browsers when static assets change
  ballotbox serve --dev --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().Bool("watch", false, "Reload browsers when static assets change")
	cmd.Flags().Bool("dev", false, "Enable development routes and request logging")
	cmd.Flags().String("static-dir", "", "Directory to watch for static asset changes")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "Open the page in a browser")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cctx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cctx.Cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pollCfg := poll.Config{
		History:  store,
		PageSize: cfg.Backend.PageSize,
		Logger:   cctx.Logger,
	}
	manager := session.NewManager(ctx, session.Config{
		Store: sessions.NewCookieStore([]byte(cfg.UI.SessionSecret)),
		Factory: func(id string) (*page.Page, error) {
			return poll.NewPage(pollCfg, cctx.Client, id)
		},
		IdleTimeout: cfg.UI.IdleTimeout,
		Logger:      cctx.Logger,
	})

	staticDir := cfg.UI.StaticDir
	if staticDir == "" {
		staticDir = resources.Dir()
	}

	server := ui.NewServer(ui.Config{
		Sessions:  manager,
		Port:      cfg.UI.Port,
		Watch:     cfg.UI.Watch,
		StaticDir: staticDir,
		Dev:       cfg.UI.Dev,
		Logger:    cctx.Logger,
	})

	url := fmt.Sprintf("http://localhost:%d", cfg.UI.Port)
	if opts.Open {
		go openBrowser(url)
	}

	r := cctx.Renderer
	r.Success("Serving polls on " + url)
	r.KeyValue("backend", cfg.Backend.URL)
	r.KeyValue("history", cfg.History.Driver)
	r.Muted("Press Ctrl+C to stop")

	if err := server.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
