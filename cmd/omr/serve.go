package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/httpapi"
)

var (
	serveAddr    string
	serveRelease bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the OMR pipeline over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveRelease {
			gin.SetMode(gin.ReleaseMode)
		}

		p, err := newPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		var repo httpapi.Repository
		if DB != nil {
			repo = DB
		}
		srv := &http.Server{
			Addr:    serveAddr,
			Handler: httpapi.New(p, repo).Router(),
		}

		errc := make(chan error, 1)
		go func() {
			log.Printf("Listening on %s", serveAddr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-cmd.Context().Done():
			log.Printf("Shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().BoolVar(&serveRelease, "release", false, "Run gin in release mode")
	rootCmd.AddCommand(serveCmd)
}
