// Command adlschema generates SQL, Prisma, GraphQL, Mermaid and Go
// artifacts from adlc JSON ASTs.
//
//	adlschema sql -i ast/ -m app.model -o out
//	adlschema plan -c adlschema.yaml
//	adlschema apply --dialect postgres --dsn "$DATABASE_URL" out/migrate.sql
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
