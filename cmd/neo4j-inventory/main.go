// Command neo4j-inventory stores Ansible inventories in Neo4j and serves
// them back as a dynamic inventory script.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ntoofu/neo4j-ansible-inventory/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.NewApp(), os.Args[1:])
	stop()
	os.Exit(code)
}
