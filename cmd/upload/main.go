package main

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"

	"github.com/airenas/clipcheck/internal/pkg/filer"
	"github.com/airenas/clipcheck/internal/pkg/postgres"
	"github.com/airenas/clipcheck/internal/pkg/sessions"
	"github.com/airenas/clipcheck/internal/pkg/upload"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &upload.Data{}
	data.Port = cfg.GetInt("port")
	var err error

	ctx := context.Background()

	dbPool, err := pgxpool.New(ctx, cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.Sessions, err = sessions.NewStore(cfg.GetString("kv.url"), cfg.GetString("kv.token"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init sessions store")
	}

	data.Saver, err = filer.NewFiler(ctx, filer.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file saver")
	}

	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	if err = upload.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
         ___             __              __
   _____/ (_)___  _____/ /_  ___  _____/ /__
  / ___/ / / __ \/ ___/ __ \/ _ \/ ___/ //_/
 / /__/ / / /_/ / /__/ / / /  __/ /__/ ,<
 \___/_/_/ .___/\___/_/ /_/\___/\___/_/|_|
        /_/
               __                __
   __  ______ / /___  ____ _____/ /
  / / / / __ \/ / __ \/ __ ` + "`" + `/ __  /
 / /_/ / /_/ / / /_/ / /_/ / /_/ /
 \__,_/ .___/_/\____/\__,_/\__,_/   v: %s
     /_/

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/clipcheck"))
}
