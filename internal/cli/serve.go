package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/internal/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		allowHosts []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve annotated pages and the status API",
		Long: `Start an HTTP server that annotates pages on request.

GET /annotate?url=... fetches and annotates a page, POST /annotate annotates the
request body. Status controls in served pages switch to the next status at once
and save it through PUT /status/{owner}/{name}.

GET /annotate only fetches from hosts on the allow list (server.allow_hosts,
default github.com). Listening on a public address with --allow-host '*' turns
the server into an open proxy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if len(allowHosts) == 0 {
				allowHosts = a.cfg.Server.AllowHosts
			}
			srv := server.New(server.Options{
				Runner:   a.runner(),
				Counters: a.counters,
				Notices:  a.notices,
				Logger:   a.logger,

				AllowHosts: allowHosts,
			})

			ready := make(chan string, 1)
			go func() {
				if bound, ok := <-ready; ok {
					printSuccess("Serving on %s", StyleLink.Render("http://"+bound))
					printNextStep("Annotate a page", "curl 'http://"+bound+"/annotate?url=...'")
				}
			}()
			err = srv.ListenAndServe(ctx, addr, ready)
			close(ready)
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:7878)")
	cmd.Flags().StringSliceVar(&allowHosts, "allow-host", nil, "host GET /annotate may fetch from, repeatable; '*' allows any (default from config, github.com)")

	return cmd
}
