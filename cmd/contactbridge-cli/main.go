package main

import (
	"context"

	"contactbridge/cmd/contactbridge-cli/commands"
	"contactbridge/lib/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()
	telemetry.SetupFromEnv(context.Background(), "contactbridge-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
