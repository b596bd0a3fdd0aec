package cli

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/fmueller/speech2text/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload page and transcription API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context(), cmd.OutOrStdout())
		},
	}

	bindServeFlags(cmd)
	return cmd
}

func bindServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", web.DefaultAddr, "Listen address for the web page")
	cmd.Flags().Int64("max-upload-mb", web.DefaultMaxUploadMB, "Largest accepted upload in megabytes")
}

func (a *appState) serve(ctx context.Context, out io.Writer) error {
	run, err := a.runner()
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Options{
		Runner:      web.RunnerFunc(run),
		Logger:      a.log(),
		MaxUploadMB: a.settings.MaxUploadMB,
	})
	if err != nil {
		return err
	}

	addr := a.settings.Addr
	if addr == "" {
		addr = web.DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	fmt.Fprintf(out, "Open http://%s in your browser\n", ln.Addr())
	a.log().Info("web page ready", zap.String("addr", ln.Addr().String()), zap.Int64("max_upload_mb", a.settings.MaxUploadMB))
	return srv.Serve(ctx, ln)
}
