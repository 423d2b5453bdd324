// Command api runs only the HTTP and gRPC servers, for container images that do not need the CLI.
package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/app"
)

func main() {
	fx.New(app.HTTP, fx.StopTimeout(15*time.Second)).Run()
}
