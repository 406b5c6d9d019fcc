package main

import (
	"context"
	"time"

	aclean "github.com/airenas/async-api/pkg/clean"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"

	"github.com/airenas/clipcheck/internal/pkg/clean"
	"github.com/airenas/clipcheck/internal/pkg/filer"
	"github.com/airenas/clipcheck/internal/pkg/sessions"
)

func main() {
	goapp.StartWithDefault()
	cfg := goapp.Config

	data := &clean.Data{}
	data.Port = cfg.GetInt("port")

	ctx := context.Background()

	store, err := sessions.NewStore(cfg.GetString("kv.url"), cfg.GetString("kv.token"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init sessions store")
	}
	storeCleaner, err := clean.NewStoreCleaner(store)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init store cleaner")
	}

	fsCleaner, err := filer.NewFiler(ctx, filer.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file cleaner")
	}

	tData := aclean.TimerData{}
	tData.IDsProvider, err = clean.NewFileIDsProvider(fsCleaner, cfg.GetDuration("timer.expire"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init IDs provider")
	}

	printBanner()

	cleaner := &aclean.CleanerGroup{}
	cleaner.Jobs = append(cleaner.Jobs, fsCleaner)
	cleaner.Jobs = append(cleaner.Jobs, storeCleaner)

	data.Cleaner = cleaner

	tData.RunEvery = cfg.GetDuration("timer.runEvery")
	tData.Cleaner = cleaner

	goapp.Log.Info().Dur("duration", cfg.GetDuration("timer.expire")).Msg("expire")

	ctxTimer, cancelFunc := context.WithCancel(ctx)
	doneCh, err := aclean.StartCleanTimer(ctxTimer, &tData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start timer")
	}
	if err := clean.StartWebServer(data); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
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
         __
   _____/ /__  ____ _____
  / ___/ / _ \/ __ ` + "`" + `/ __ \
 / /__/ /  __/ /_/ / / / /
 \___/_/\___/\__,_/_/ /_/     v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/clipcheck"))
}
