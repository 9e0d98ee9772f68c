package commands

import (
	"context"
	"os"
	"playermail/internal/components/chrono"
	"playermail/internal/components/telemetry"
	"playermail/internal/config"
	"playermail/internal/dispatch"
	"playermail/internal/journal"
	"playermail/internal/scrapers/gameserver"
	"playermail/internal/service"
	"playermail/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

// app is everything a command needs, wired from the settings file.
type app struct {
	cfg       config.Config
	messenger service.Messenger
	journal   *journal.Store
}

// openApp exits the process on any error, there is nothing a command can do
// without a valid config.
func openApp() app {
	cfg, err := config.Load(*configPath, os.Environ())
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	tel := telemetry.SlogAPI{}
	clock := chrono.NewStandardImpl()

	var dump telemetry.HttpDump
	if *dumpHttp != "" {
		dir, err := telemetry.NewDirectoryDump(*dumpHttp, tel)
		if err != nil {
			serviceutil.Fatal("failed to create http dump directory", err)
		}
		dump = dir
	}

	client, err := gameserver.NewClient(gameserver.ClientOptions{
		Credentials: gameserver.Credentials{
			Server:   cfg.Server,
			Login:    cfg.Login,
			Password: cfg.Pass,
		},
		SessionLost:       gameserver.ExpectLandingPage(cfg.LandingPage),
		Timeout:           cfg.Timeout(),
		RequestsPerSecond: cfg.RateLimit(),
		Chrono:            clock,
		Dump:              dump,
	}, tel)
	if err != nil {
		serviceutil.Fatal("failed to create game server client", err)
	}

	journalStore, err := journal.Open(cfg.JournalFile, tel)
	if err != nil {
		serviceutil.Fatal("failed to open dispatch journal", err)
	}

	queue := dispatch.NewQueue(cfg.RosterFile)
	scraper := gameserver.NewRosterScraper(client, gameserver.DefaultListingExtractor(), clock, tel)
	dispatcher := dispatch.NewDispatcher(dispatch.Options{
		Sender: client,
		Queue:  queue,
		Template: dispatch.MessageTemplate{
			Subject: cfg.Subject,
			Body:    cfg.Message,
		},
		Delay:    cfg.DelayDuration(),
		Chrono:   clock,
		Recorder: journalStore,
	}, tel)

	return app{
		cfg:       cfg,
		messenger: service.NewMessenger(client, scraper, queue, dispatcher, service.WithCustomTelemetryAPI(tel)),
		journal:   journalStore,
	}
}

func (a app) Close() {
	a.journal.Close()
}

// endSession logs out with a fresh context so it still runs after Ctrl+C.
func (a app) endSession() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout())
	defer cancel()
	a.messenger.Logout(ctx)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
