package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"contactbridge/lib/configutil"
	"contactbridge/lib/restyutil"
	"contactbridge/lib/serviceutil"
	"contactbridge/lib/sqliteutil"
	"contactbridge/lib/telemetry"
	"contactbridge/services/bridge"
	"contactbridge/services/settings"
	settingsdb "contactbridge/services/settings/db"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `json:"port"`
	Database string `json:"database"`
	// attribution tag on created contacts
	Source string `json:"source"`
	// pause between contact creation and workflow enrollment
	EnrollDelayMs int `json:"enroll_delay_ms"`
	// when set, full http transcripts are dumped here
	HttpTranscripts string `json:"http_transcripts"`
	Debug           bool   `json:"debug"`
}

func main() {
	godotenv.Load()
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	telemetry.InitSlog(config.Debug)

	db, err := sqliteutil.OpenDB(settingsdb.Schema, config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "contactbridged")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	var instrument restyutil.InstrumentOutput
	if config.HttpTranscripts != "" {
		instrument = restyutil.NewFilesystemOutput(config.HttpTranscripts)
	}

	service := bridge.NewService(settings.NewService(db), bridge.Options{
		EnrollDelay:      time.Duration(config.EnrollDelayMs) * time.Millisecond,
		Source:           config.Source,
		InstrumentOutput: instrument,
	})

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	service.Mount(router)

	slog.InfoContext(ctx, "listening", "port", config.Port)
	go serviceutil.StartHttpServer(config.Port, router)

	<-ctx.Done()
}
