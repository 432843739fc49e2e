package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/mocksocrata"
)

func main() {
	addr := defaultString("MOCK_SOCRATA_ADDR", ":8080")
	fixtures := defaultString("MOCK_SOCRATA_FIXTURES", "")
	username := defaultString("SO_KEY", "")
	password := defaultString("SO_SECRET", "")
	appToken := defaultString("SO_TOKEN", "")

	fs := flag.NewFlagSet("mock-socrata", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixtures, "fixtures", fixtures, "JSON file with an array of {public, row_count, asset} fixtures")
	_ = fs.Parse(os.Args[1:])

	srv := mocksocrata.New()
	if username != "" || password != "" {
		srv.RequireBasicAuth(username, password)
	}
	srv.RequireAppToken(appToken)

	if fixtures != "" {
		f, err := os.Open(fixtures)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "open fixtures: %v\n", err)
			os.Exit(2)
		}
		err = srv.LoadFixtures(f)
		_ = f.Close()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-socrata listening on %s (fixtures=%q)\n", addr, fixtures)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
